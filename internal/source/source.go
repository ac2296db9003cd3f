// Package source retrieves code artifacts from the local filesystem or GitHub.
package source

import (
	"context"
	"fmt"
	"strings"

	"codebrew/internal/review"
)

// Provider fetches one source artifact by identifier (a path or URL)
type Provider interface {
	Fetch(ctx context.Context, id string) (review.SourceArtifact, error)
}

// Lister enumerates the files under a directory or repository identifier
type Lister interface {
	List(ctx context.Context, id, ext string) ([]string, error)
}

// NotFoundError means the identifier does not name an existing file
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.ID)
}

// TransportError means the source could not be reached
type TransportError struct {
	ID    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.ID, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

var skippedDirs = map[string]bool{
	"test":         true,
	"tests":        true,
	"vendor":       true,
	"node_modules": true,
	"venv":         true,
	"__pycache__":  true,
}

// SkipDir reports whether a directory is left out of walks: hidden
// directories, test directories and dependency folders.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	return skippedDirs[strings.ToLower(name)]
}

// skipPath applies SkipDir to every directory segment of a slash path
func skipPath(p string) bool {
	segs := strings.Split(p, "/")
	for _, s := range segs[:len(segs)-1] {
		if SkipDir(s) {
			return true
		}
	}
	return false
}

// IsGitHubURL reports whether id should be fetched from GitHub
func IsGitHubURL(id string) bool {
	id = strings.TrimSpace(id)
	return strings.HasPrefix(id, "https://github.com/") || strings.HasPrefix(id, "http://github.com/")
}

// Router sends GitHub URLs to the remote provider and everything else to
// the local one.
type Router struct {
	Local  *Local
	GitHub *GitHub
}

// Fetch implements Provider
func (r *Router) Fetch(ctx context.Context, id string) (review.SourceArtifact, error) {
	if IsGitHubURL(id) {
		if r.GitHub == nil {
			return review.SourceArtifact{}, &TransportError{ID: id, Cause: fmt.Errorf("github source not configured")}
		}
		return r.GitHub.Fetch(ctx, id)
	}
	return r.Local.Fetch(ctx, id)
}

// List implements Lister
func (r *Router) List(ctx context.Context, id, ext string) ([]string, error) {
	if IsGitHubURL(id) {
		if r.GitHub == nil {
			return nil, &TransportError{ID: id, Cause: fmt.Errorf("github source not configured")}
		}
		return r.GitHub.List(ctx, id, ext)
	}
	return r.Local.List(ctx, id, ext)
}
