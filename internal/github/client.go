package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-github/v82/github"
)

// ErrNotFound is returned when a repository, ref or file does not exist
var ErrNotFound = errors.New("not found")

// Client provides GitHub API operations
type Client struct {
	client *github.Client
	token  string
}

// NewClient creates a new GitHub API client
func NewClient(token string) *Client {
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}

	return &Client{
		client: github.NewClient(httpClient),
		token:  token,
	}
}

// NewClientWithBaseURL points the client at another API root, such as a
// GitHub Enterprise instance or a test server.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := NewClient(token)
	c.client.BaseURL = u
	return c, nil
}

type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "token "+t.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// GetToken returns the configured token
func (c *Client) GetToken() string {
	return c.token
}

// DefaultBranch returns the repository's default branch
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", wrapErr("get repository", err)
	}
	if b := r.GetDefaultBranch(); b != "" {
		return b, nil
	}
	return "main", nil
}

// GetFileContent fetches file content from a repo
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	content, _, err := c.getFile(ctx, owner, repo, path, ref)
	return content, err
}

func (c *Client) getFile(ctx context.Context, owner, repo, path, ref string) (string, string, error) {
	content, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return "", "", wrapErr("get file content", err)
	}

	if content == nil {
		return "", "", fmt.Errorf("get file content: %s is a directory: %w", path, ErrNotFound)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decode content: %w", err)
	}

	return decoded, content.GetSHA(), nil
}

// RepoFile is one file found by ListFiles
type RepoFile struct {
	Path string
	Name string
	Size int
	URL  string
}

// CommitSHA resolves a branch, tag or commit to its commit SHA
func (c *Client) CommitSHA(ctx context.Context, owner, repo, ref string) (string, error) {
	if IsCommitSHA(ref) {
		return ref, nil
	}
	sha, _, err := c.client.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		return "", wrapErr("resolve "+ref, err)
	}
	sha = strings.TrimSpace(sha)
	if !IsCommitSHA(sha) {
		return "", fmt.Errorf("resolve %s: unexpected commit sha %q", ref, sha)
	}
	return sha, nil
}

// IsCommitSHA reports whether ref is a full 40 character commit SHA
func IsCommitSHA(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, r := range ref {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ListFiles returns every blob under ref whose name ends with ext, using one
// recursive tree request. An empty ref means the default branch. Blob URLs
// are pinned to the commit the ref pointed at, so they never go stale.
func (c *Client) ListFiles(ctx context.Context, owner, repo, ref, ext string) ([]RepoFile, error) {
	if ref == "" {
		branch, err := c.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		ref = branch
	}

	sha, err := c.CommitSHA(ctx, owner, repo, ref)
	if err != nil {
		return nil, err
	}

	tree, _, err := c.client.Git.GetTree(ctx, owner, repo, sha, true)
	if err != nil {
		return nil, wrapErr("get tree", err)
	}

	var files []RepoFile
	for _, e := range tree.Entries {
		if e.GetType() != "blob" || !strings.HasSuffix(e.GetPath(), ext) {
			continue
		}
		files = append(files, RepoFile{
			Path: e.GetPath(),
			Name: path.Base(e.GetPath()),
			Size: e.GetSize(),
			URL:  BlobURL(owner, repo, sha, e.GetPath()),
		})
	}
	return files, nil
}

// ParseRepoFullName splits "owner/repo" into parts
func ParseRepoFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name: %s", fullName)
	}
	return parts[0], parts[1], nil
}

// FileRef locates a file in a repository
type FileRef struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// FullName returns "owner/repo"
func (f FileRef) FullName() string {
	return f.Owner + "/" + f.Repo
}

// ParseFileURL parses https://github.com/<owner>/<repo>/blob/<ref>/<path>
func ParseFileURL(raw string) (FileRef, error) {
	parts, err := urlParts(raw)
	if err != nil {
		return FileRef{}, err
	}
	if len(parts) < 5 || parts[2] != "blob" {
		return FileRef{}, fmt.Errorf("not a github file url: %s", raw)
	}
	return FileRef{
		Owner: parts[0],
		Repo:  parts[1],
		Ref:   parts[3],
		Path:  strings.Join(parts[4:], "/"),
	}, nil
}

// ParseRepoURL parses https://github.com/<owner>/<repo>[/tree/<ref>[/<dir>]].
// Ref is empty when the URL names no branch.
func ParseRepoURL(raw string) (FileRef, error) {
	parts, err := urlParts(raw)
	if err != nil {
		return FileRef{}, err
	}
	if len(parts) < 2 {
		return FileRef{}, fmt.Errorf("not a github repository url: %s", raw)
	}
	ref := FileRef{Owner: parts[0], Repo: strings.TrimSuffix(parts[1], ".git")}
	if len(parts) >= 4 && parts[2] == "tree" {
		ref.Ref = parts[3]
		ref.Path = strings.Join(parts[4:], "/")
	}
	return ref, nil
}

// BlobURL builds the browser URL of a file
func BlobURL(owner, repo, ref, filePath string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, filePath)
}

func urlParts(raw string) ([]string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return nil, fmt.Errorf("not a github url: %s", raw)
	}
	return strings.Split(strings.Trim(u.Path, "/"), "/"), nil
}

func wrapErr(op string, err error) error {
	var ge *github.ErrorResponse
	if errors.As(err, &ge) && ge.Response != nil && ge.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
