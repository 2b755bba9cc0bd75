// Package google provides a Google Gemini backend for modelgate.
//
// The package wraps the Google GenAI SDK and registers itself under the
// provider name "google" on import. The API key is taken from the backend
// config or the GOOGLE_API_KEY environment variable.
package google

import (
	"context"
	"fmt"
	"os"

	mg "github.com/modelgate/modelgate"
	"google.golang.org/genai"
)

// EnvAPIKey is the environment variable holding the Google credential.
const EnvAPIKey = "GOOGLE_API_KEY"

func init() {
	mg.Register("google", func(ctx context.Context, cfg mg.BackendConfig) (mg.Backend, error) {
		return New(ctx, cfg)
	})
}

// Backend wraps the Google GenAI SDK to implement mg.Backend.
type Backend struct {
	client *genai.Client
	model  string
}

// New creates a Google backend for the given model.
func New(ctx context.Context, cfg mg.BackendConfig) (*Backend, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(EnvAPIKey)
	}
	if key == "" {
		return nil, fmt.Errorf("no API key configured for google (set %s)", EnvAPIKey)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}
	return &Backend{client: client, model: cfg.Model}, nil
}

// Generate performs one content generation call against the Gemini API.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg mg.GenerateConfig) (*mg.Response, error) {
	config := &genai.GenerateContentConfig{}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.TopP != nil {
		topP := float32(*cfg.TopP)
		config.TopP = &topP
	}
	if cfg.Seed != nil {
		seed := int32(*cfg.Seed)
		config.Seed = &seed
	}
	if len(cfg.StopSeqs) > 0 {
		config.StopSequences = cfg.StopSeqs
	}
	if cfg.SystemMessage != nil {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: *cfg.SystemMessage}},
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), config)
	if err != nil {
		return nil, wrapError(err)
	}

	content := ""
	stopReason := ""
	if len(resp.Candidates) > 0 {
		if c := resp.Candidates[0].Content; c != nil {
			for _, part := range c.Parts {
				content += part.Text
			}
		}
		stopReason = string(resp.Candidates[0].FinishReason)
	}

	usage := mg.Usage{}
	if resp.UsageMetadata != nil {
		usage = mg.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return &mg.Response{
		Content:    content,
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

// Close releases backend resources. The SDK client holds no connections
// beyond the standard HTTP transport.
func (b *Backend) Close() error {
	return nil
}
