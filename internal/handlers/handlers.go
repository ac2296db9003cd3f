package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	ghclient "codebrew/internal/github"
	"codebrew/internal/llm"
	"codebrew/internal/notify"
	"codebrew/internal/review"
	"codebrew/internal/scan"
	"codebrew/internal/source"
	"codebrew/internal/store"
)

type Analyzer interface {
	Analyze(ctx context.Context, artifact review.SourceArtifact, schema review.Schema) (*review.Result, error)
	AnalyzeBatch(ctx context.Context, artifacts []review.SourceArtifact, mode review.BatchMode, schema review.Schema) (*review.BatchResult, error)
}

type ScanQueue interface {
	Enqueue(ctx context.Context, req scan.Request) (scan.Job, error)
	Get(id string) (scan.Job, bool)
}

type PRCreator interface {
	CreateSuggestionPR(ctx context.Context, req ghclient.PRRequest) (ghclient.PRResult, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (notify.Status, error)
}

type RecordStore interface {
	Save(s review.Suggestion) (string, error)
	Load(path string) (review.Suggestion, error)
	Dir() string
}

type AnalyticsLog interface {
	Append(e store.Entry) error
	Totals() (store.Totals, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, eventType string, payload []byte, deliveryID string) (*scan.Job, error)
}

// Deps are the services behind the handlers. Only Analyzer and Sources are
// required; endpoints whose dependency is nil answer 503.
type Deps struct {
	Analyzer      Analyzer
	Sources       source.Provider
	Scans         ScanQueue
	PullRequests  PRCreator
	Notifier      Notifier
	Records       RecordStore
	Analytics     AnalyticsLog
	Webhooks      WebhookProcessor
	WebhookSecret string
	// Schema is used when a request names none
	Schema string
	// User is recorded in analytics entries
	User string
}

// Handler manages HTTP request handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler instance
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/webhook", h.GitHubWebhook)

	api := r.Group("/api")
	api.POST("/analyze", h.Analyze)
	api.POST("/analyze/batch", h.AnalyzeBatch)
	api.POST("/scan", h.Scan)
	api.GET("/scan/:id", h.ScanStatus)
	api.POST("/pull-requests", h.CreatePullRequest)
	api.POST("/notify", h.Notify)
	api.GET("/analytics", h.Analytics)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) schema(name string) (review.Schema, error) {
	if name == "" {
		name = h.deps.Schema
	}
	return review.SchemaFor(name)
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}

// abortWithError maps the pipeline's error taxonomy onto HTTP statuses and
// includes the raw model output when there is one.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var notFound *source.NotFoundError
	var analysis *review.AnalysisError
	switch {
	case errors.As(err, &notFound), errors.Is(err, ghclient.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case llm.IsTransport(err), llm.IsEmptyResponse(err):
		status = http.StatusBadGateway
	case errors.As(err, &analysis):
		status = http.StatusUnprocessableEntity
	}

	body := gin.H{"error": err.Error()}
	if analysis != nil {
		body["attempts"] = analysis.Attempts
	}
	if raw := review.RawResponse(err); raw != "" {
		body["raw"] = raw
	}
	c.JSON(status, body)
}
