package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"codebrew/internal/config"
	"codebrew/internal/copilot"
	ghclient "codebrew/internal/github"
	"codebrew/internal/guidelines"
	"codebrew/internal/llm"
	"codebrew/internal/notify"
	"codebrew/internal/review"
	"codebrew/internal/source"
	"codebrew/internal/store"
)

type appKey struct{}

// App holds the configuration and builds services on first use, so commands
// only pay for what they touch.
type App struct {
	Config config.Config

	newInvoker func(ctx context.Context, cfg config.LLMConfig) (llm.Invoker, func() error, error)

	mu        sync.Mutex
	invoker   llm.Invoker
	github    *ghclient.Client
	sources   *source.Router
	records   *store.SuggestionStore
	analytics *store.Analytics
	closers   []func() error
}

func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

func getApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, fmt.Errorf("internal error: app not initialized")
	}
	return app, nil
}

func initApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg), nil
}

func newApp(cfg config.Config) *App {
	return &App{Config: cfg, newInvoker: buildInvoker}
}

// buildInvoker creates the configured model backend. Copilot runs a client
// process, so it is started here and stopped on Close.
func buildInvoker(ctx context.Context, cfg config.LLMConfig) (llm.Invoker, func() error, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "copilot" {
		svc := copilot.NewService(cfg.CopilotModel)
		if err := svc.Start(); err != nil {
			return nil, nil, err
		}
		return svc, svc.Stop, nil
	}

	apiKey := cfg.APIKey
	if provider == "gemini" {
		apiKey = cfg.GeminiAPIKey
	}
	inv, err := llm.NewInvoker(ctx, llm.Config{
		Provider: provider,
		Model:    cfg.Model,
		APIKey:   apiKey,
		BaseURL:  cfg.BaseURL,
		Region:   cfg.Region,
		Timeout:  cfg.Timeout,
	})
	return inv, nil, err
}

// Analyzer returns the suggestion pipeline bound to the configured model
func (a *App) Analyzer(ctx context.Context) (*review.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.invoker == nil {
		inv, closer, err := a.newInvoker(ctx, a.Config.LLM)
		if err != nil {
			return nil, fmt.Errorf("init %s provider: %w", a.Config.LLM.Provider, err)
		}
		a.invoker = inv
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	opts := review.DefaultOptions()
	opts.MaxAttempts = a.Config.LLM.MaxAttempts
	opts.RetryTransport = a.Config.LLM.RetryTransport
	opts.TransportBackoff = a.Config.LLM.TransportBackoff
	opts.MaxTokens = a.Config.LLM.MaxTokens
	opts.Temperature = a.Config.LLM.Temperature
	opts.Instructions = a.Config.Review.Instructions
	return review.NewService(a.invoker, opts), nil
}

// AddGuidelines appends the coding rules found under dir to the prompt
// instructions. It must run before Analyzer.
func (a *App) AddGuidelines(ctx context.Context, dir string) error {
	text, err := guidelines.Instructions(ctx, dir)
	if err != nil {
		return fmt.Errorf("read guidelines: %w", err)
	}
	if text == "" {
		return nil
	}
	if a.Config.Review.Instructions != "" {
		text = a.Config.Review.Instructions + "\n\n" + text
	}
	a.Config.Review.Instructions = text
	return nil
}

// Schema resolves name, falling back to the configured version
func (a *App) Schema(name string) (review.Schema, error) {
	if name == "" {
		name = a.Config.Review.Schema
	}
	return review.SchemaFor(name)
}

func (a *App) GitHub() (*ghclient.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.githubLocked()
}

func (a *App) githubLocked() (*ghclient.Client, error) {
	if a.github != nil {
		return a.github, nil
	}
	if a.Config.GitHub.BaseURL == "" {
		a.github = ghclient.NewClient(a.Config.GitHub.Token)
		return a.github, nil
	}
	c, err := ghclient.NewClientWithBaseURL(a.Config.GitHub.Token, a.Config.GitHub.BaseURL)
	if err != nil {
		return nil, err
	}
	a.github = c
	return c, nil
}

// Sources routes GitHub URLs to the API and everything else to disk
func (a *App) Sources() (*source.Router, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sources != nil {
		return a.sources, nil
	}
	gh, err := a.githubLocked()
	if err != nil {
		return nil, err
	}
	remote, err := source.NewGitHub(gh, a.Config.GitHub.CacheSize)
	if err != nil {
		return nil, err
	}
	a.sources = &source.Router{Local: source.NewLocal(""), GitHub: remote}
	return a.sources, nil
}

func (a *App) Records() (*store.SuggestionStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.records == nil {
		st, err := store.NewSuggestionStore(a.Config.Store.SuggestionsDir)
		if err != nil {
			return nil, err
		}
		a.records = st
	}
	return a.records, nil
}

func (a *App) Analytics() (*store.Analytics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.analytics == nil {
		db, err := store.OpenAnalytics(a.Config.Store.AnalyticsDB)
		if err != nil {
			return nil, err
		}
		a.analytics = db
		a.closers = append(a.closers, db.Close)
	}
	return a.analytics, nil
}

func (a *App) Mailer() *notify.Mailer {
	smtp := a.Config.SMTP
	return notify.NewMailer(notify.Config{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
	})
}

// Close releases everything built so far
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
