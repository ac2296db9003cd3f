package handlers

import (
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	ghclient "codebrew/internal/github"
	"codebrew/internal/notify"
	"codebrew/internal/review"
	"codebrew/internal/store"
)

// PullRequestRequest opens a pull request from an inline suggestion or a
// saved record. Record is a file name inside the records directory.
type PullRequestRequest struct {
	Suggestion *review.Suggestion `json:"suggestion"`
	Record     string             `json:"record"`
	Repo       string             `json:"repo"`
	BaseBranch string             `json:"base_branch"`
	Notify     string             `json:"notify"`
	// Schema the suggestion is checked against; the server default when empty
	Schema string `json:"schema"`
}

func (h *Handler) CreatePullRequest(c *gin.Context) {
	if h.deps.PullRequests == nil {
		unavailable(c, "github")
		return
	}

	var req PullRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var s review.Suggestion
	switch {
	case req.Suggestion != nil:
		s = *req.Suggestion
	case req.Record != "" && h.deps.Records != nil:
		loaded, err := h.deps.Records.Load(filepath.Join(h.deps.Records.Dir(), filepath.Base(req.Record)))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s = loaded
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "suggestion or record is required"})
		return
	}

	prReq := ghclient.RequestFor(s, req.Repo, req.BaseBranch)
	if prReq.Repo == "" || prReq.FilePath == "" || prReq.CommitMessage == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo, file_path and commit_message are required"})
		return
	}
	if !s.HasLineRange() && s.OldCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_line/end_line or old_code is required"})
		return
	}

	schema, err := h.schema(req.Schema)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s, err = review.ValidateSuggestion(s, schema); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid suggestion: " + err.Error()})
		return
	}
	prReq = ghclient.RequestFor(s, req.Repo, req.BaseBranch)

	res, err := h.deps.PullRequests.CreateSuggestionPR(c.Request.Context(), prReq)
	if err != nil {
		log.Printf("pull request for %s failed: %v", prReq.Repo, err)
		abortWithError(c, err)
		return
	}
	if res.AlreadyExists {
		c.JSON(http.StatusOK, res)
		return
	}

	if s.RepoName == "" {
		s.RepoName = prReq.Repo
	}
	if h.deps.Analytics != nil {
		if err := h.deps.Analytics.Append(store.EntryFor(s, h.deps.User, time.Now())); err != nil {
			log.Printf("Warning: failed to record analytics: %v", err)
		}
	}
	if req.Notify != "" && h.deps.Notifier != nil {
		if _, err := h.deps.Notifier.Send(c.Request.Context(), notify.SuggestionMessage(req.Notify, s, res.URL)); err != nil {
			log.Printf("Warning: failed to send notification: %v", err)
		}
	}

	c.JSON(http.StatusCreated, res)
}
