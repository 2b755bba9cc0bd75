// Package anthropic provides an Anthropic Claude backend for modelgate.
//
// The package wraps the official Anthropic Go SDK and registers itself
// under the provider name "anthropic" on import. The API key is taken from
// the backend config or the ANTHROPIC_API_KEY environment variable.
package anthropic

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mg "github.com/modelgate/modelgate"
)

// EnvAPIKey is the environment variable holding the Anthropic credential.
const EnvAPIKey = "ANTHROPIC_API_KEY"

func init() {
	mg.Register("anthropic", func(ctx context.Context, cfg mg.BackendConfig) (mg.Backend, error) {
		return New(cfg)
	})
}

// Backend wraps the Anthropic SDK to implement mg.Backend.
type Backend struct {
	client *anthropic.Client
	model  string
}

// New creates an Anthropic backend for the given model. No network call is
// made; a missing credential surfaces here as a build failure.
func New(cfg mg.BackendConfig) (*Backend, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(EnvAPIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("no API key configured for anthropic (set %s)", EnvAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Backend{client: &client, model: cfg.Model}, nil
}

// Generate performs one message call against the Anthropic API.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg mg.GenerateConfig) (*mg.Response, error) {
	maxTokens := int64(4096)
	if cfg.MaxTokens != nil {
		maxTokens = int64(*cfg.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if cfg.SystemMessage != nil {
		params.System = []anthropic.TextBlockParam{{Text: *cfg.SystemMessage}}
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = anthropic.Float(*cfg.TopP)
	}
	if len(cfg.StopSeqs) > 0 {
		params.StopSequences = cfg.StopSeqs
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &mg.Response{
		Content:    content,
		StopReason: string(resp.StopReason),
		Usage: mg.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// Close releases backend resources. The SDK client holds no connections
// beyond the standard HTTP transport.
func (b *Backend) Close() error {
	return nil
}
