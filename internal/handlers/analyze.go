package handlers

import (
	"log"
	"net/http"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"codebrew/internal/review"
)

// ArtifactInput names a file to fetch, or carries its content inline
type ArtifactInput struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	RepoName string `json:"repo_name"`
	Content  string `json:"content"`
}

type AnalyzeRequest struct {
	ArtifactInput
	Schema string `json:"schema"`
	Save   bool   `json:"save"`
}

type AnalyzeResponse struct {
	Suggestion review.Suggestion `json:"suggestion"`
	Attempts   int               `json:"attempts"`
	Record     string            `json:"record,omitempty"`
}

type BatchRequest struct {
	Files  []ArtifactInput `json:"files"`
	Mode   string          `json:"mode"`
	Schema string          `json:"schema"`
}

func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Source == "" && req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source or content is required"})
		return
	}

	schema, err := h.schema(req.Schema)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifact, err := h.resolve(c, req.ArtifactInput)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := h.deps.Analyzer.Analyze(c.Request.Context(), artifact, schema)
	if err != nil {
		log.Printf("analysis of %s failed: %v", artifact.Label(), err)
		abortWithError(c, err)
		return
	}

	resp := AnalyzeResponse{Suggestion: result.Suggestion, Attempts: result.Attempts}
	if req.Save && h.deps.Records != nil {
		if resp.Record, err = h.deps.Records.Save(result.Suggestion); err != nil {
			log.Printf("Warning: failed to save suggestion: %v", err)
		} else {
			resp.Record = filepath.Base(resp.Record)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AnalyzeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files are required"})
		return
	}

	mode := review.BatchPerFile
	if req.Mode != "" {
		var ok bool
		if mode, ok = review.ParseBatchMode(req.Mode); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be per_file or single_best"})
			return
		}
	}
	schema, err := h.schema(req.Schema)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifacts := make([]review.SourceArtifact, 0, len(req.Files))
	for _, f := range req.Files {
		if f.Source == "" && f.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every file needs source or content"})
			return
		}
		a, err := h.resolve(c, f)
		if err != nil {
			abortWithError(c, err)
			return
		}
		artifacts = append(artifacts, a)
	}

	result, err := h.deps.Analyzer.AnalyzeBatch(c.Request.Context(), artifacts, mode, schema)
	if err != nil {
		log.Printf("batch analysis failed: %v", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) resolve(c *gin.Context, in ArtifactInput) (review.SourceArtifact, error) {
	if in.Content != "" {
		name := path.Base(in.Path)
		if in.Path == "" {
			name = "snippet"
		}
		return review.SourceArtifact{RepoName: in.RepoName, Path: in.Path, Name: name, Content: in.Content}, nil
	}
	a, err := h.deps.Sources.Fetch(c.Request.Context(), in.Source)
	if err != nil {
		return review.SourceArtifact{}, err
	}
	if in.RepoName != "" {
		a.RepoName = in.RepoName
	}
	return a, nil
}
