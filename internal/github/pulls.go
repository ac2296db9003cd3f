package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/go-github/v82/github"

	"codebrew/internal/patch"
	"codebrew/internal/review"
)

// StateAlreadyExists is reported when the suggestion branch was created before
const StateAlreadyExists = "already_exists"

// PRRequest describes a one-file suggestion to turn into a pull request
type PRRequest struct {
	Repo          string // owner/repo
	FilePath      string
	StartLine     int
	EndLine       int
	OldCode       string // used to locate the range when no lines are given
	NewCode       string
	CommitMessage string
	BranchName    string
	BaseBranch    string // default branch when empty
	Title         string
	Body          string
	// Description is placed above the generated diff when Body is empty
	Description string
}

// RequestFor turns a validated suggestion into a pull request request.
// repo overrides the suggestion's repo_name when set.
func RequestFor(s review.Suggestion, repo, baseBranch string) PRRequest {
	if repo == "" {
		repo = s.RepoName
	}
	desc := s.Issue
	if b := s.Benefit.String(); b != "" {
		desc += "\n\n**Benefit:** " + b
	}
	return PRRequest{
		Repo:          repo,
		FilePath:      s.FilePath,
		StartLine:     s.StartLine,
		EndLine:       s.EndLine,
		OldCode:       s.OldCode,
		NewCode:       s.NewCode,
		CommitMessage: s.CommitMessage,
		BranchName:    s.BranchName,
		BaseBranch:    baseBranch,
		Description:   desc,
	}
}

// PRResult is the outcome of CreateSuggestionPR
type PRResult struct {
	URL           string `json:"url,omitempty"`
	Number        int    `json:"number,omitempty"`
	State         string `json:"state"`
	Branch        string `json:"branch"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
	Diff          string `json:"diff,omitempty"`
}

// CreateSuggestionPR creates a branch from the base head, replaces the line
// range in one commit and opens a pull request. Re-submitting a branch name
// that already exists reports AlreadyExists instead of failing.
func (c *Client) CreateSuggestionPR(ctx context.Context, req PRRequest) (PRResult, error) {
	owner, repo, err := ParseRepoFullName(req.Repo)
	if err != nil {
		return PRResult{}, err
	}
	if req.FilePath == "" {
		return PRResult{}, fmt.Errorf("create suggestion pr: file path is required")
	}

	branch := req.BranchName
	if branch == "" {
		branch = BranchFor(req.CommitMessage)
	}

	base := req.BaseBranch
	if base == "" {
		base, err = c.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return PRResult{}, err
		}
	}

	original, fileSHA, err := c.getFile(ctx, owner, repo, req.FilePath, base)
	if err != nil {
		return PRResult{}, err
	}

	start, end, err := replaceRange(original, req)
	if err != nil {
		return PRResult{}, err
	}
	updated, err := patch.Apply(original, start, end, req.NewCode)
	if err != nil {
		return PRResult{}, fmt.Errorf("apply suggestion to %s: %w", req.FilePath, err)
	}
	preview, err := patch.UnifiedDiff(req.FilePath, original, updated)
	if err != nil {
		return PRResult{}, err
	}

	baseRef, _, err := c.client.Git.GetRef(ctx, owner, repo, "heads/"+base)
	if err != nil {
		return PRResult{}, wrapErr("get base ref", err)
	}

	_, _, err = c.client.Git.CreateRef(ctx, owner, repo, github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: baseRef.GetObject().GetSHA(),
	})
	if err != nil {
		if refExists(err) {
			log.Printf("Branch %s already exists in %s, skipping", branch, req.Repo)
			return PRResult{State: StateAlreadyExists, Branch: branch, AlreadyExists: true, Diff: preview}, nil
		}
		return PRResult{}, wrapErr("create branch", err)
	}

	_, _, err = c.client.Repositories.UpdateFile(ctx, owner, repo, req.FilePath, &github.RepositoryContentFileOptions{
		Message: github.Ptr(req.CommitMessage),
		Content: []byte(updated),
		SHA:     github.Ptr(fileSHA),
		Branch:  github.Ptr(branch),
	})
	if err != nil {
		return PRResult{}, wrapErr("commit change", err)
	}

	title := req.Title
	if title == "" {
		title = req.CommitMessage
	}
	body := req.Body
	if body == "" {
		if req.Description != "" {
			body = req.Description + "\n\n"
		}
		body += fmt.Sprintf("Automated suggestion for `%s` (lines %d-%d).\n\n```diff\n%s```\n", req.FilePath, start, end, preview)
	}

	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return PRResult{}, wrapErr("create pull request", err)
	}

	log.Printf("Opened pull request #%d on %s: %s", pr.GetNumber(), req.Repo, pr.GetHTMLURL())
	return PRResult{
		URL:    pr.GetHTMLURL(),
		Number: pr.GetNumber(),
		State:  pr.GetState(),
		Branch: branch,
		Diff:   preview,
	}, nil
}

func refExists(err error) bool {
	var ge *github.ErrorResponse
	if !errors.As(err, &ge) || ge.Response == nil || ge.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(ge.Message), "already exists")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// BranchFor derives a branch name from a commit message
func BranchFor(commitMessage string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(commitMessage), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug == "" {
		slug = "suggestion"
	}
	return "codebrew/" + slug
}

// replaceRange picks the lines the new code replaces. A given range is
// narrowed to the old code inside it; when the old code is not inside the
// range, the range is wrong and the old code's own location wins.
func replaceRange(original string, req PRRequest) (int, int, error) {
	start, end := req.StartLine, req.EndLine
	if req.OldCode == "" {
		return start, end, nil
	}
	if start > 0 {
		if s, e, ok := patch.LocateWithin(original, req.OldCode, start, end); ok {
			return s, e, nil
		}
		log.Printf("Lines %d-%d of %s do not hold the old code, locating it instead", start, end, req.FilePath)
	}
	s, e, ok := patch.Locate(original, req.OldCode)
	if !ok {
		return 0, 0, fmt.Errorf("old code not found in %s", req.FilePath)
	}
	return s, e, nil
}
