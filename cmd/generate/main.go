// Command generate sends a single prompt to a model and prints the
// completion, exercising the full dispatch stack: model resolution, config
// merging, connection limiting, and retries.
//
// The model is taken from -model or the MODELGATE_MODEL environment
// variable. API keys come from the provider environment variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY); a .env file is
// loaded if present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelgate/modelgate"

	_ "github.com/modelgate/modelgate/provider/anthropic"
	_ "github.com/modelgate/modelgate/provider/google"
	_ "github.com/modelgate/modelgate/provider/mock"
	_ "github.com/modelgate/modelgate/provider/openai"
)

func main() {
	godotenv.Load()

	var (
		model          = flag.String("model", "", "model as provider/name (default: $MODELGATE_MODEL)")
		prompt         = flag.String("prompt", "Say hello in 3 different languages, one per line.", "prompt to send")
		temperature    = flag.Float64("temperature", -1, "sampling temperature")
		topP           = flag.Float64("top-p", -1, "nucleus sampling cutoff")
		maxTokens      = flag.Int("max-tokens", 0, "max tokens to generate")
		timeout        = flag.Duration("timeout", 0, "per-attempt timeout")
		maxRetries     = flag.Int("max-retries", 0, "attempt ceiling for retryable failures")
		maxConnections = flag.Int("max-connections", 0, "concurrent in-flight call limit")
		verbose        = flag.Bool("v", false, "log dispatch events")
	)
	flag.Parse()

	var cfg modelgate.GenerateConfig
	if *temperature >= 0 {
		cfg.Temperature = temperature
	}
	if *topP >= 0 {
		cfg.TopP = topP
	}
	if *maxTokens > 0 {
		cfg.MaxTokens = maxTokens
	}
	if *timeout > 0 {
		cfg.Timeout = timeout
	}
	if *maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if *maxConnections > 0 {
		cfg.MaxConnections = maxConnections
	}

	reg := modelgate.NewRegistry()
	defer reg.Close()

	opts := []modelgate.GetOption{modelgate.WithConfig(cfg)}

	var events chan modelgate.Event
	if *verbose {
		events = make(chan modelgate.Event, 64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				logEvent(ev)
			}
		}()
		defer func() { close(events); <-done }()
		opts = append(opts, modelgate.WithEvents(events))
	}

	ctx := context.Background()
	m, err := reg.Get(ctx, *model, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	resp, err := m.Generate(ctx, *prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(resp.Content)
	fmt.Printf("\n[%s | %d in, %d out | %s | %s]\n",
		resp.Model,
		resp.Usage.InputTokens, resp.Usage.OutputTokens,
		resp.StopReason,
		resp.Time.Round(time.Millisecond))
}

func logEvent(ev modelgate.Event) {
	switch ev.Type {
	case modelgate.EventRequestStart:
		slog.Info("request start", "request", ev.RequestID, "model", ev.Model)
	case modelgate.EventRequestComplete:
		slog.Info("request complete", "request", ev.RequestID, "model", ev.Model,
			"duration", ev.Duration)
	case modelgate.EventRequestError:
		slog.Warn("request failed", "request", ev.RequestID, "model", ev.Model,
			"duration", ev.Duration, "error", ev.Error)
	case modelgate.EventRetry:
		if re := ev.RetryEvent; re != nil {
			slog.Info("retry", "request", ev.RequestID,
				"event", re.Type, "attempt", re.Attempt, "delay", re.Delay)
		}
	}
}
