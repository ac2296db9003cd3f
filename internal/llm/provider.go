// Package llm defines the model invoker abstraction and its providers.
// Consumers depend on Invoker only, so backends (Bedrock, OpenAI-compatible,
// Gemini, Copilot, a scripted fake) can be swapped through configuration.
package llm

import (
	"context"
	"time"
)

// PromptRequest is the rendered prompt plus generation parameters. It is
// built fresh for every attempt.
type PromptRequest struct {
	Prompt        string
	MaxTokens     int
	Temperature   float64
	StopSequences []string
	// Model overrides the provider's configured model when set
	Model string
}

// ModelResponse is the raw completion. Text is untrusted and may not be JSON.
type ModelResponse struct {
	Text       string
	StopReason string
	Model      string
}

// Invoker performs exactly one model call per Invoke. Implementations do not
// retry; that is the caller's decision.
type Invoker interface {
	Invoke(ctx context.Context, req PromptRequest) (ModelResponse, error)
}

// Config selects and configures a provider. It is passed explicitly to
// NewInvoker; providers never read globals.
type Config struct {
	Provider string // bedrock, openai, gemini, copilot, fake
	Model    string
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoint
	Region   string // AWS region for Bedrock
	Timeout  time.Duration

	// FakeResponses scripts the fake provider for offline runs
	FakeResponses []string
}

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.5
)

// modelFor returns the per-request model or the configured default
func modelFor(req PromptRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}

func maxTokensFor(req PromptRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
