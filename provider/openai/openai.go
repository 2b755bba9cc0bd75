// Package openai provides an OpenAI backend for modelgate.
//
// The package wraps the official OpenAI Go SDK and registers itself under
// the provider name "openai" on import. The API key is taken from the
// backend config or the OPENAI_API_KEY environment variable.
package openai

import (
	"context"
	"fmt"
	"os"

	mg "github.com/modelgate/modelgate"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EnvAPIKey is the environment variable holding the OpenAI credential.
const EnvAPIKey = "OPENAI_API_KEY"

func init() {
	mg.Register("openai", func(ctx context.Context, cfg mg.BackendConfig) (mg.Backend, error) {
		return New(cfg)
	})
}

// Backend wraps the OpenAI SDK to implement mg.Backend.
type Backend struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI backend for the given model. No network call is
// made; a missing credential surfaces here as a build failure.
func New(cfg mg.BackendConfig) (*Backend, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(EnvAPIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("no API key configured for openai (set %s)", EnvAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Backend{client: &client, model: cfg.Model}, nil
}

// Generate performs one chat completion call against the OpenAI API.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg mg.GenerateConfig) (*mg.Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}
	if cfg.SystemMessage != nil {
		messages = append([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(*cfg.SystemMessage),
		}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    b.model,
		Messages: messages,
	}
	if cfg.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = openai.Float(*cfg.TopP)
	}
	if cfg.Seed != nil {
		params.Seed = openai.Int(*cfg.Seed)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, mg.NewFatalError("openai returned no choices", 0, nil)
	}

	return &mg.Response{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: mg.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Close releases backend resources. The SDK client holds no connections
// beyond the standard HTTP transport.
func (b *Backend) Close() error {
	return nil
}
