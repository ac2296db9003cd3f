package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewInvoker builds the provider named by cfg.Provider. The copilot provider
// lives in its own package because it owns a long-running client process.
func NewInvoker(ctx context.Context, cfg Config) (Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "bedrock", "":
		return NewBedrockProvider(ctx, cfg.Region, cfg.Model)
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires an API key or a base URL")
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "fake":
		return NewFake(cfg.FakeResponses...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
