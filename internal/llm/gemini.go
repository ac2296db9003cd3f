package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type geminiAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider is a thin wrapper around the official genai client
type GeminiProvider struct {
	models geminiAPI
	model  string
}

// NewGeminiProvider creates a Gemini API client. An empty apiKey lets the
// genai client fall back to GEMINI_API_KEY / GOOGLE_API_KEY.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiProvider(cli.Models, model), nil
}

func newGeminiProvider(models geminiAPI, model string) *GeminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{models: models, model: model}
}

// Invoke sends the prompt as one user turn
func (g *GeminiProvider) Invoke(ctx context.Context, req PromptRequest) (ModelResponse, error) {
	model := modelFor(req, g.model)

	resp, err := g.models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(req.Temperature)),
			MaxOutputTokens: int32(maxTokensFor(req)),
			StopSequences:   req.StopSequences,
		},
	)
	if err != nil {
		return ModelResponse{}, transportErr("gemini", err)
	}

	var stop string
	if len(resp.Candidates) > 0 {
		stop = string(resp.Candidates[0].FinishReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return ModelResponse{}, &EmptyResponseError{Provider: "gemini", StopReason: stop}
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return ModelResponse{Text: text, StopReason: stop, Model: model}, nil
}
