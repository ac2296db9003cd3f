package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements Invoker for OpenAI-compatible chat completion APIs
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI provider
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // If empty, uses https://api.openai.com/v1
	Model   string // If empty, uses gpt-4o-mini
	Timeout time.Duration
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Invoke sends the prompt as a single user message
func (p *OpenAIProvider) Invoke(ctx context.Context, req PromptRequest) (ModelResponse, error) {
	reqBody := openAIRequest{
		Model: modelFor(req, p.model),
		Messages: []openAIMessage{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokensFor(req),
		Stop:        req.StopSequences,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return ModelResponse{}, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ModelResponse{}, transportErr("openai", fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{}, transportErr("openai", fmt.Errorf("read response: %w", err))
	}

	var result openAIResponse
	if err := json.Unmarshal(body, &result); err != nil && resp.StatusCode < 300 {
		return ModelResponse{}, transportErr("openai", fmt.Errorf("parse response: %w", err))
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if result.Error != nil {
			msg = result.Error.Message
		}
		return ModelResponse{}, transportErr("openai", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	if result.Error != nil {
		return ModelResponse{}, transportErr("openai", fmt.Errorf("api error: %s", result.Error.Message))
	}

	if len(result.Choices) == 0 {
		return ModelResponse{}, &EmptyResponseError{Provider: "openai"}
	}

	choice := result.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return ModelResponse{}, &EmptyResponseError{Provider: "openai", StopReason: choice.FinishReason}
	}

	return ModelResponse{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Model:      result.Model,
	}, nil
}
