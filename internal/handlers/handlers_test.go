package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghclient "codebrew/internal/github"
	"codebrew/internal/llm"
	"codebrew/internal/notify"
	"codebrew/internal/review"
	"codebrew/internal/scan"
	"codebrew/internal/source"
	"codebrew/internal/store"
	"codebrew/internal/webhook"
)

const dupesSource = `def get_duplicates(items):
    duplicates = []
    for i in range(len(items)):
        for j in range(i + 1, len(items)):
            if items[i] == items[j]:
                duplicates.append(items[i])
    return duplicates
`

const modelReply = "```json\n" + `{
  "issue": "Nested loops make duplicate detection O(n^2)",
  "old_code": "    for i in range(len(items)):\n        for j in range(i + 1, len(items)):\n            if items[i] == items[j]:\n                duplicates.append(items[i])",
  "new_code": "    seen = set()\n    for item in items:\n        if item in seen:\n            duplicates.append(item)\n        seen.add(item)",
  "benefit": "O(n) instead of O(n^2)",
  "commit_message": "Use a set to find duplicates",
  "start_line": 3,
  "end_line": 6
}` + "\n```"

type mockSources map[string]review.SourceArtifact

func (m mockSources) Fetch(ctx context.Context, id string) (review.SourceArtifact, error) {
	a, ok := m[id]
	if !ok {
		return review.SourceArtifact{}, &source.NotFoundError{ID: id}
	}
	return a, nil
}

func (m mockSources) List(ctx context.Context, id, ext string) ([]string, error) {
	var ids []string
	for k := range m {
		ids = append(ids, k)
	}
	return ids, nil
}

type mockPRs struct {
	requests []ghclient.PRRequest
	result   ghclient.PRResult
	err      error
}

func (m *mockPRs) CreateSuggestionPR(ctx context.Context, req ghclient.PRRequest) (ghclient.PRResult, error) {
	m.requests = append(m.requests, req)
	return m.result, m.err
}

type mockNotifier struct {
	sent []notify.Message
	err  error
}

func (m *mockNotifier) Send(ctx context.Context, msg notify.Message) (notify.Status, error) {
	m.sent = append(m.sent, msg)
	if m.err != nil {
		return notify.Status{Status: "error", Message: m.err.Error()}, m.err
	}
	return notify.Status{Status: "success", Message: "Email sent successfully"}, nil
}

type testEnv struct {
	router    *gin.Engine
	fake      *llm.Fake
	prs       *mockPRs
	notifier  *mockNotifier
	records   *store.SuggestionStore
	analytics *store.Analytics
	queue     *scan.Queue
}

func newTestEnv(t *testing.T, replies ...string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := llm.NewFake(replies...)
	analyzer := review.NewService(fake, review.DefaultOptions())

	sources := mockSources{
		"https://github.com/acme/tools/blob/main/lib/dupes.py": {
			RepoName: "acme/tools", Path: "lib/dupes.py", Name: "dupes.py", Content: dupesSource,
		},
	}

	records, err := store.NewSuggestionStore(filepath.Join(t.TempDir(), "suggestions"))
	require.NoError(t, err)
	analytics, err := store.OpenAnalytics(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { analytics.Close() })

	queue := scan.NewQueue(scan.NewService(sources, analyzer, records, review.MinimalSchema(), ".py"), scan.QueueConfig{QueueSize: 2, Workers: 1})
	t.Cleanup(func() { queue.Stop(context.Background()) })

	env := &testEnv{
		fake:      fake,
		prs:       &mockPRs{result: ghclient.PRResult{URL: "https://github.com/acme/tools/pull/7", Number: 7, State: "open", Branch: "codebrew/x"}},
		notifier:  &mockNotifier{},
		records:   records,
		analytics: analytics,
		queue:     queue,
	}

	h := NewHandler(Deps{
		Analyzer:     analyzer,
		Sources:      sources,
		Scans:        queue,
		PullRequests: env.prs,
		Notifier:     env.notifier,
		Records:      records,
		Analytics:    analytics,
		Webhooks:     webhook.NewProcessor(queue, ".py"),
		Schema:       "minimal",
		User:         "tester",
	})

	env.router = gin.New()
	h.Register(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAnalyze_FromSource(t *testing.T) {
	env := newTestEnv(t, modelReply)

	w := env.do(t, http.MethodPost, "/api/analyze", gin.H{
		"source": "https://github.com/acme/tools/blob/main/lib/dupes.py",
		"save":   true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	decode(t, w, &resp)
	assert.Equal(t, "Use a set to find duplicates", resp.Suggestion.CommitMessage)
	assert.Equal(t, "acme/tools", resp.Suggestion.RepoName)
	assert.Equal(t, "lib/dupes.py", resp.Suggestion.FilePath)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotEmpty(t, resp.Record)

	paths, err := env.records.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestAnalyze_InlineContent(t *testing.T) {
	env := newTestEnv(t, modelReply)

	w := env.do(t, http.MethodPost, "/api/analyze", gin.H{"content": dupesSource, "path": "dupes.py"})
	require.Equal(t, http.StatusOK, w.Code)

	requests := env.fake.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Prompt, "def get_duplicates(items):")
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
		body    any
		status  int
		hasRaw  bool
	}{
		{name: "missing input", body: gin.H{}, status: http.StatusBadRequest},
		{name: "unknown schema", body: gin.H{"content": "x", "schema": "v9"}, status: http.StatusBadRequest},
		{name: "unknown source", body: gin.H{"source": "/nope.py"}, status: http.StatusNotFound},
		{
			name:    "model never answers with json",
			replies: []string{"Sorry, I can't do that."},
			body:    gin.H{"content": dupesSource},
			status:  http.StatusUnprocessableEntity,
			hasRaw:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.replies...)
			w := env.do(t, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			if tt.hasRaw {
				var body map[string]any
				decode(t, w, &body)
				assert.Equal(t, "Sorry, I can't do that.", body["raw"])
				assert.EqualValues(t, 3, body["attempts"])
			}
		})
	}
}

func TestAnalyze_TransportError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := llm.NewFakeSteps(llm.FakeStep{Err: &llm.TransportError{Provider: "fake", Cause: errors.New("connection refused")}})
	h := NewHandler(Deps{Analyzer: review.NewService(fake, review.DefaultOptions()), Sources: mockSources{}})
	r := gin.New()
	h.Register(r)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(`{"content":"x = 1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAnalyzeBatch_PerFile(t *testing.T) {
	reply := `{"analyses": [
		{"file": "a.py", "issue": "i", "old_code": "o", "new_code": "n", "benefit": "b", "commit_message": "Fix a"},
		{"file": "b.py", "issue": "i", "old_code": "o", "new_code": "n", "benefit": "b"}
	]}`
	env := newTestEnv(t, reply)

	w := env.do(t, http.MethodPost, "/api/analyze/batch", gin.H{
		"mode": "per_file",
		"files": []gin.H{
			{"path": "a.py", "content": "a = 1"},
			{"path": "b.py", "content": "b = 2"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Mode string `json:"mode"`
		Set  struct {
			Entries  []review.BatchEntry `json:"entries"`
			Failures []struct {
				File   string `json:"file"`
				Reason string `json:"reason"`
			} `json:"failures"`
		} `json:"set"`
	}
	decode(t, w, &body)
	assert.Equal(t, "per_file", body.Mode)
	require.Len(t, body.Set.Entries, 1)
	assert.Equal(t, "a.py", body.Set.Entries[0].File)
	require.Len(t, body.Set.Failures, 1)
	assert.Equal(t, "b.py", body.Set.Failures[0].File)
	assert.Contains(t, body.Set.Failures[0].Reason, "commit_message")
}

func TestAnalyzeBatch_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/analyze/batch", gin.H{"files": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/analyze/batch", gin.H{"mode": "all", "files": []gin.H{{"content": "x"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScan_QueuedAndCompleted(t *testing.T) {
	env := newTestEnv(t, modelReply)

	w := env.do(t, http.MethodPost, "/api/scan", gin.H{"target": "https://github.com/acme/tools"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var job scan.Job
	decode(t, w, &job)
	assert.Equal(t, "/api/scan/"+job.ID, w.Header().Get("Location"))

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/scan/"+job.ID, nil)
		var got scan.Job
		decode(t, w, &got)
		return got.State == scan.JobDone
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(t, http.MethodGet, "/api/scan/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/scan", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreatePullRequest(t *testing.T) {
	env := newTestEnv(t)

	s := review.Suggestion{
		Issue:         "Nested loops",
		OldCode:       "a\nb\nc",
		NewCode:       "x",
		Benefit:       review.Benefit{Summary: "faster"},
		CommitMessage: "Use a set",
		RepoName:      "acme/tools",
		FilePath:      "lib/dupes.py",
		StartLine:     3,
		EndLine:       5,
	}
	w := env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"suggestion": s, "notify": "dev@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, env.prs.requests, 1)
	assert.Equal(t, "acme/tools", env.prs.requests[0].Repo)
	assert.Equal(t, 3, env.prs.requests[0].StartLine)

	totals, err := env.analytics.Totals()
	require.NoError(t, err)
	assert.Equal(t, store.Totals{Entries: 1, Repos: 1, LinesOptimized: 1, UnusedLinesRemoved: 2}, totals)

	require.Len(t, env.notifier.sent, 1)
	assert.Contains(t, env.notifier.sent[0].Body, "https://github.com/acme/tools/pull/7")

	w = env.do(t, http.MethodGet, "/api/analytics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreatePullRequest_FromRecord(t *testing.T) {
	env := newTestEnv(t)

	path, err := env.records.Save(review.Suggestion{
		Issue: "i", OldCode: "o", NewCode: "n", Benefit: review.Benefit{Summary: "b"},
		CommitMessage: "Fix", RepoName: "acme/tools", FilePath: "a.py", StartLine: 1, EndLine: 1,
	})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"record": filepath.Base(path), "base_branch": "develop"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "develop", env.prs.requests[0].BaseBranch)

	w = env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"record": "../../etc/passwd"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePullRequest_Failures(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/pull-requests", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"suggestion": gin.H{"commit_message": "x", "file_path": "a.py"}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no repo")

	valid := gin.H{
		"issue": "i", "old_code": "o", "new_code": "n", "benefit": "b",
		"commit_message": "x", "file_path": "a.py", "repo_name": "acme/tools", "start_line": 1, "end_line": 1,
	}

	env.prs.result = ghclient.PRResult{State: ghclient.StateAlreadyExists, AlreadyExists: true}
	w = env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"suggestion": valid})
	assert.Equal(t, http.StatusOK, w.Code)
	totals, err := env.analytics.Totals()
	require.NoError(t, err)
	assert.Zero(t, totals.Entries)

	env.prs.err = fmtNotFound()
	w = env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"suggestion": valid})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePullRequest_RejectsInvalidSuggestion(t *testing.T) {
	env := newTestEnv(t)

	// no issue, no benefit and an empty replacement would delete lines 1-7
	w := env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"repo": "acme/tools", "suggestion": gin.H{
		"file_path": "lib/dupes.py", "commit_message": "x", "old_code": "    return duplicates", "start_line": 1, "end_line": 7,
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "issue")
	assert.Empty(t, env.prs.requests)

	path, err := env.records.Save(review.Suggestion{
		OldCode: "o", CommitMessage: "Fix", RepoName: "acme/tools", FilePath: "a.py", StartLine: 1, EndLine: 1,
	})
	require.NoError(t, err)
	w = env.do(t, http.MethodPost, "/api/pull-requests", gin.H{"record": filepath.Base(path)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Empty(t, env.prs.requests)
}

func fmtNotFound() error {
	return errors.Join(errors.New("get file content"), ghclient.ErrNotFound)
}

func TestNotify(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/notify", gin.H{"email": "dev@example.com", "subject": "Hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/notify", gin.H{"email": "dev@example.com", "subject": "Hi", "message": "Done"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"Email sent successfully"}`, w.Body.String())

	env.notifier.err = notify.ErrNotConfigured
	w = env.do(t, http.MethodPost, "/api/notify", gin.H{"email": "dev@example.com", "subject": "Hi", "message": "Done"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestGitHubWebhook(t *testing.T) {
	env := newTestEnv(t, modelReply)

	send := func(event string, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		if event != "" {
			req.Header.Set("X-GitHub-Event", event)
		}
		req.Header.Set("X-GitHub-Delivery", "d-1")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := send("", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send("ping", `{"zen":"Keep it logically awesome.","hook_id":1}`)
	assert.Equal(t, http.StatusOK, w.Code)

	push := `{"ref":"refs/heads/main","after":"main","repository":{"full_name":"acme/tools","default_branch":"main"},
		"commits":[{"modified":["lib/dupes.py"]}]}`
	w = send("push", push)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var body map[string]any
	decode(t, w, &body)
	assert.EqualValues(t, 1, body["files"])

	id, _ := body["scan_id"].(string)
	require.Eventually(t, func() bool {
		job, ok := env.queue.Get(id)
		return ok && job.State == scan.JobDone && job.Report.Succeeded == 1
	}, 2*time.Second, 10*time.Millisecond)
}
