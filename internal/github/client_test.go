package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebrew/internal/review"
)

func TestParseRepoFullName(t *testing.T) {
	tests := []struct {
		name      string
		fullName  string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "valid repo name",
			fullName:  "owner/repo",
			wantOwner: "owner",
			wantRepo:  "repo",
		},
		{
			name:      "org with dashes",
			fullName:  "my-org/my-repo",
			wantOwner: "my-org",
			wantRepo:  "my-repo",
		},
		{
			name:     "missing slash",
			fullName: "noslash",
			wantErr:  true,
		},
		{
			name:     "empty owner",
			fullName: "/repo",
			wantErr:  true,
		},
		{
			name:     "empty string",
			fullName: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoFullName(tt.fullName)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseRepoFullName(%q) expected error, got nil", tt.fullName)
				}
				return
			}

			if err != nil {
				t.Errorf("ParseRepoFullName(%q) unexpected error: %v", tt.fullName, err)
				return
			}

			if owner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", owner, tt.wantOwner)
			}
			if repo != tt.wantRepo {
				t.Errorf("repo = %q, want %q", repo, tt.wantRepo)
			}
		})
	}
}

func TestParseFileURL(t *testing.T) {
	ref, err := ParseFileURL("https://github.com/acme/tools/blob/main/pkg/io/utils.py")
	require.NoError(t, err)
	assert.Equal(t, FileRef{Owner: "acme", Repo: "tools", Ref: "main", Path: "pkg/io/utils.py"}, ref)
	assert.Equal(t, "acme/tools", ref.FullName())

	for _, bad := range []string{
		"https://github.com/acme/tools",
		"https://github.com/acme/tools/tree/main/pkg",
		"https://gitlab.com/acme/tools/blob/main/a.py",
	} {
		_, err := ParseFileURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		url  string
		want FileRef
	}{
		{url: "https://github.com/acme/tools", want: FileRef{Owner: "acme", Repo: "tools"}},
		{url: "https://github.com/acme/tools.git", want: FileRef{Owner: "acme", Repo: "tools"}},
		{url: "https://github.com/acme/tools/", want: FileRef{Owner: "acme", Repo: "tools"}},
		{url: "https://github.com/acme/tools/tree/dev", want: FileRef{Owner: "acme", Repo: "tools", Ref: "dev"}},
		{url: "https://github.com/acme/tools/tree/dev/src/app", want: FileRef{Owner: "acme", Repo: "tools", Ref: "dev", Path: "src/app"}},
	}

	for _, tt := range tests {
		got, err := ParseRepoURL(tt.url)
		if err != nil {
			t.Errorf("ParseRepoURL(%q) unexpected error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRepoURL(%q) = %+v, want %+v", tt.url, got, tt.want)
		}
	}

	_, err := ParseRepoURL("https://github.com/acme")
	assert.Error(t, err)
}

func TestClient_GetToken(t *testing.T) {
	token := "my-secret-token"
	client := &Client{token: token}

	if got := client.GetToken(); got != token {
		t.Errorf("GetToken() = %q, want %q", got, token)
	}
}

func TestBranchFor(t *testing.T) {
	assert.Equal(t, "codebrew/use-set-lookup-for-duplicates", BranchFor("Use set lookup for duplicates"))
	assert.Equal(t, "codebrew/suggestion", BranchFor("!!!"))
	assert.LessOrEqual(t, len(BranchFor("Rewrite the whole duplicate detection module to use hashing everywhere")), len("codebrew/")+40)
}

const fileBody = "def f(items):\n    for i in items:\n        print(i)\n    return None\n"

type fakeGitHub struct {
	mux        *http.ServeMux
	refExists  bool
	createdRef map[string]string
	committed  map[string]any
	pull       map[string]any
	resolved   int
}

const headSHA = "3f786850e387550fdab836ed7e6dc881de23001b"

func newFakeGitHub(t *testing.T) (*Client, *fakeGitHub) {
	t.Helper()
	f := &fakeGitHub{mux: http.NewServeMux()}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	decode := func(r *http.Request, v any) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, v)
	}

	f.mux.HandleFunc("GET /repos/acme/tools", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"full_name": "acme/tools", "default_branch": "main"})
	})
	f.mux.HandleFunc("GET /repos/acme/tools/contents/app/f.py", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     "file",
			"name":     "f.py",
			"path":     "app/f.py",
			"sha":      "file-sha",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(fileBody)),
		})
	})
	f.mux.HandleFunc("GET /repos/acme/tools/contents/missing.py", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	f.mux.HandleFunc("GET /repos/acme/tools/commits/main", func(w http.ResponseWriter, r *http.Request) {
		f.resolved++
		w.Write([]byte(headSHA))
	})
	f.mux.HandleFunc("GET /repos/acme/tools/commits/gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "No commit found for SHA: gone"})
	})
	f.mux.HandleFunc("GET /repos/acme/tools/git/trees/"+headSHA, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		writeJSON(w, http.StatusOK, map[string]any{"sha": "tree", "tree": []map[string]any{
			{"path": "app", "type": "tree"},
			{"path": "app/f.py", "type": "blob", "size": 60},
			{"path": "app/README.md", "type": "blob", "size": 10},
			{"path": "tests/test_f.py", "type": "blob", "size": 20},
		}})
	})
	f.mux.HandleFunc("GET /repos/acme/tools/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "base-sha", "type": "commit"}})
	})
	f.mux.HandleFunc("POST /repos/acme/tools/git/refs", func(w http.ResponseWriter, r *http.Request) {
		if f.refExists {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "Reference already exists"})
			return
		}
		decode(r, &f.createdRef)
		writeJSON(w, http.StatusCreated, map[string]any{"ref": f.createdRef["ref"], "object": map[string]any{"sha": "base-sha"}})
	})
	f.mux.HandleFunc("PUT /repos/acme/tools/contents/app/f.py", func(w http.ResponseWriter, r *http.Request) {
		decode(r, &f.committed)
		writeJSON(w, http.StatusOK, map[string]any{"content": map[string]any{"path": "app/f.py"}, "commit": map[string]any{"sha": "new-sha"}})
	})
	f.mux.HandleFunc("POST /repos/acme/tools/pulls", func(w http.ResponseWriter, r *http.Request) {
		decode(r, &f.pull)
		writeJSON(w, http.StatusCreated, map[string]any{"number": 7, "state": "open", "html_url": "https://github.com/acme/tools/pull/7"})
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	c, err := NewClientWithBaseURL("tok", srv.URL)
	require.NoError(t, err)
	return c, f
}

func TestClient_GetFileContent(t *testing.T) {
	c, _ := newFakeGitHub(t)

	content, err := c.GetFileContent(context.Background(), "acme", "tools", "app/f.py", "main")
	require.NoError(t, err)
	assert.Equal(t, fileBody, content)

	_, err = c.GetFileContent(context.Background(), "acme", "tools", "missing.py", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_ListFiles(t *testing.T) {
	c, f := newFakeGitHub(t)

	files, err := c.ListFiles(context.Background(), "acme", "tools", "", ".py")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "app/f.py", files[0].Path)
	assert.Equal(t, "f.py", files[0].Name)
	assert.Equal(t, 60, files[0].Size)
	assert.Equal(t, "https://github.com/acme/tools/blob/"+headSHA+"/app/f.py", files[0].URL)
	assert.Equal(t, 1, f.resolved)

	files, err = c.ListFiles(context.Background(), "acme", "tools", headSHA, ".py")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, 1, f.resolved, "a commit sha needs no lookup")

	_, err = c.ListFiles(context.Background(), "acme", "tools", "gone", ".py")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestIsCommitSHA(t *testing.T) {
	assert.True(t, IsCommitSHA(headSHA))
	assert.True(t, IsCommitSHA(strings.ToUpper(headSHA)))
	assert.False(t, IsCommitSHA("main"))
	assert.False(t, IsCommitSHA(headSHA[:7]))
	assert.False(t, IsCommitSHA(strings.Repeat("z", 40)))
}

func TestClient_CreateSuggestionPR(t *testing.T) {
	c, f := newFakeGitHub(t)

	res, err := c.CreateSuggestionPR(context.Background(), PRRequest{
		Repo:          "acme/tools",
		FilePath:      "app/f.py",
		StartLine:     2,
		EndLine:       3,
		NewCode:       "    print(*items, sep=\"\\n\")",
		CommitMessage: "Print items in one call",
		BranchName:    "fix/print-once",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, res.Number)
	assert.Equal(t, "open", res.State)
	assert.Equal(t, "https://github.com/acme/tools/pull/7", res.URL)
	assert.False(t, res.AlreadyExists)
	assert.Contains(t, res.Diff, "-        print(i)")

	assert.Equal(t, "refs/heads/fix/print-once", f.createdRef["ref"])
	assert.Equal(t, "base-sha", f.createdRef["sha"])

	assert.Equal(t, "Print items in one call", f.committed["message"])
	assert.Equal(t, "fix/print-once", f.committed["branch"])
	assert.Equal(t, "file-sha", f.committed["sha"])
	committed, err := base64.StdEncoding.DecodeString(f.committed["content"].(string))
	require.NoError(t, err)
	assert.Equal(t, "def f(items):\n    print(*items, sep=\"\\n\")\n    return None\n", string(committed))

	assert.Equal(t, "fix/print-once", f.pull["head"])
	assert.Equal(t, "main", f.pull["base"])
	assert.Equal(t, "Print items in one call", f.pull["title"])
}

func TestClient_CreateSuggestionPR_LocatesOldCode(t *testing.T) {
	c, f := newFakeGitHub(t)

	res, err := c.CreateSuggestionPR(context.Background(), PRRequest{
		Repo:          "acme/tools",
		FilePath:      "app/f.py",
		OldCode:       "    return None",
		NewCode:       "    return",
		CommitMessage: "Drop explicit None return",
	})
	require.NoError(t, err)
	assert.Equal(t, "codebrew/drop-explicit-none-return", res.Branch)
	assert.Equal(t, "refs/heads/codebrew/drop-explicit-none-return", f.createdRef["ref"])
}

func TestClient_CreateSuggestionPR_RangeMustHoldOldCode(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		oldCode    string
		want       string
	}{
		{
			name: "range narrowed to old code", start: 1, end: 4, oldCode: "    return None",
			want: "def f(items):\n    for i in items:\n        print(i)\n    return\n",
		},
		{
			name: "wrong range falls back to located old code", start: 1, end: 1, oldCode: "    return None",
			want: "def f(items):\n    for i in items:\n        print(i)\n    return\n",
		},
		{
			name: "range past the end falls back", start: 3, end: 30, oldCode: "    return None",
			want: "def f(items):\n    for i in items:\n        print(i)\n    return\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, f := newFakeGitHub(t)

			_, err := c.CreateSuggestionPR(context.Background(), PRRequest{
				Repo:          "acme/tools",
				FilePath:      "app/f.py",
				StartLine:     tt.start,
				EndLine:       tt.end,
				OldCode:       tt.oldCode,
				NewCode:       "    return",
				CommitMessage: "Drop explicit None return",
			})
			require.NoError(t, err)
			committed, err := base64.StdEncoding.DecodeString(f.committed["content"].(string))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(committed))
		})
	}

	c, f := newFakeGitHub(t)
	_, err := c.CreateSuggestionPR(context.Background(), PRRequest{
		Repo:          "acme/tools",
		FilePath:      "app/f.py",
		StartLine:     1,
		EndLine:       4,
		OldCode:       "    return duplicates",
		NewCode:       "x",
		CommitMessage: "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "old code not found")
	assert.Nil(t, f.createdRef)
}

func TestClient_CreateSuggestionPR_BranchExists(t *testing.T) {
	c, f := newFakeGitHub(t)
	f.refExists = true

	res, err := c.CreateSuggestionPR(context.Background(), PRRequest{
		Repo:          "acme/tools",
		FilePath:      "app/f.py",
		StartLine:     4,
		EndLine:       4,
		NewCode:       "    return",
		CommitMessage: "Drop explicit None return",
		BranchName:    "fix/none",
	})
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)
	assert.Equal(t, StateAlreadyExists, res.State)
	assert.Nil(t, f.committed)
	assert.Nil(t, f.pull)
}

func TestClient_CreateSuggestionPR_BadRange(t *testing.T) {
	c, _ := newFakeGitHub(t)

	_, err := c.CreateSuggestionPR(context.Background(), PRRequest{
		Repo:          "acme/tools",
		FilePath:      "app/f.py",
		StartLine:     3,
		EndLine:       30,
		NewCode:       "x",
		CommitMessage: "x",
	})
	assert.Error(t, err)
}

func TestRequestFor(t *testing.T) {
	s := review.Suggestion{
		Issue:         "Loop prints one item per call",
		OldCode:       "    for i in items:\n        print(i)",
		NewCode:       "    print(*items, sep=\"\\n\")",
		Benefit:       review.Benefit{Summary: "fewer writes"},
		CommitMessage: "Print items in one call",
		RepoName:      "acme/tools",
		FilePath:      "app/f.py",
		StartLine:     2,
		EndLine:       3,
	}

	req := RequestFor(s, "", "develop")
	assert.Equal(t, "acme/tools", req.Repo)
	assert.Equal(t, "develop", req.BaseBranch)
	assert.Equal(t, 2, req.StartLine)
	assert.Equal(t, "Loop prints one item per call\n\n**Benefit:** fewer writes", req.Description)

	assert.Equal(t, "other/repo", RequestFor(s, "other/repo", "").Repo)

	c, f := newFakeGitHub(t)
	req.BaseBranch = ""
	_, err := c.CreateSuggestionPR(context.Background(), req)
	require.NoError(t, err)
	body, _ := f.pull["body"].(string)
	assert.Contains(t, body, "**Benefit:** fewer writes")
	assert.Contains(t, body, "```diff")
	assert.Contains(t, body, "lines 2-3")
}
