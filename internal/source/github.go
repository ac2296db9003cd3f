package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	ghclient "codebrew/internal/github"
	"codebrew/internal/review"
)

// GitHubAPI is the part of the GitHub client the provider needs
type GitHubAPI interface {
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
	ListFiles(ctx context.Context, owner, repo, ref, ext string) ([]ghclient.RepoFile, error)
}

// GitHub fetches files by blob URL. Contents of URLs pinned to a commit SHA
// are cached, so repeated scans of the same commit do not refetch. Branch
// URLs always go to the API since the branch may have moved.
type GitHub struct {
	api   GitHubAPI
	cache *lru.Cache[string, review.SourceArtifact]
}

// NewGitHub creates a GitHub provider with an LRU cache of cacheSize entries
func NewGitHub(api GitHubAPI, cacheSize int) (*GitHub, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, review.SourceArtifact](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &GitHub{api: api, cache: cache}, nil
}

// Fetch implements Provider for https://github.com/<owner>/<repo>/blob/<ref>/<path>
func (g *GitHub) Fetch(ctx context.Context, id string) (review.SourceArtifact, error) {
	if a, ok := g.cache.Get(id); ok {
		return a, nil
	}

	ref, err := ghclient.ParseFileURL(id)
	if err != nil {
		return review.SourceArtifact{}, &NotFoundError{ID: id}
	}

	content, err := g.api.GetFileContent(ctx, ref.Owner, ref.Repo, ref.Path, ref.Ref)
	if err != nil {
		if errors.Is(err, ghclient.ErrNotFound) {
			return review.SourceArtifact{}, &NotFoundError{ID: id}
		}
		return review.SourceArtifact{}, &TransportError{ID: id, Cause: err}
	}

	a := review.SourceArtifact{
		RepoName: ref.FullName(),
		Path:     ref.Path,
		Name:     path.Base(ref.Path),
		Content:  content,
	}
	if ghclient.IsCommitSHA(ref.Ref) {
		g.cache.Add(id, a)
	}
	return a, nil
}

// List implements Lister for repository URLs. It returns blob URLs, which
// Fetch accepts.
func (g *GitHub) List(ctx context.Context, id, ext string) ([]string, error) {
	ref, err := ghclient.ParseRepoURL(id)
	if err != nil {
		return nil, &NotFoundError{ID: id}
	}

	files, err := g.api.ListFiles(ctx, ref.Owner, ref.Repo, ref.Ref, ext)
	if err != nil {
		if errors.Is(err, ghclient.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, &TransportError{ID: id, Cause: err}
	}

	prefix := ""
	if ref.Path != "" {
		prefix = strings.TrimSuffix(ref.Path, "/") + "/"
	}

	var urls []string
	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) || skipPath(f.Path) {
			continue
		}
		urls = append(urls, f.URL)
	}
	return urls, nil
}

// Len returns the number of cached artifacts
func (g *GitHub) Len() int {
	return g.cache.Len()
}
