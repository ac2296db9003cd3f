package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	defaultBedrockModel  = "anthropic.claude-3-sonnet-20240229-v1:0"
	defaultBedrockRegion = "us-east-1"
	bedrockAnthropicAPI  = "bedrock-2023-05-31"
)

type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider invokes Anthropic models hosted on AWS Bedrock
type BedrockProvider struct {
	client bedrockAPI
	model  string
}

// NewBedrockProvider loads AWS credentials from the default chain
// (environment, shared config, instance role) for the given region.
func NewBedrockProvider(ctx context.Context, region, model string) (*BedrockProvider, error) {
	if region == "" {
		region = defaultBedrockRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), model), nil
}

func newBedrockProvider(client bedrockAPI, model string) *BedrockProvider {
	if model == "" {
		model = defaultBedrockModel
	}
	return &BedrockProvider{client: client, model: model}
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	StopSequences    []string         `json:"stop_sequences,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Invoke sends one messages API request
func (p *BedrockProvider) Invoke(ctx context.Context, req PromptRequest) (ModelResponse, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicAPI,
		MaxTokens:        maxTokensFor(req),
		Temperature:      req.Temperature,
		StopSequences:    req.StopSequences,
		Messages:         []bedrockMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return ModelResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	model := modelFor(req, p.model)
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return ModelResponse{}, transportErr("bedrock", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return ModelResponse{}, transportErr("bedrock", fmt.Errorf("parse response: %w", err))
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "" || c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return ModelResponse{}, &EmptyResponseError{Provider: "bedrock", StopReason: resp.StopReason}
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return ModelResponse{Text: sb.String(), StopReason: resp.StopReason, Model: model}, nil
}
