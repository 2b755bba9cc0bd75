// Package modelgate is a dispatch layer over large-language-model provider
// APIs, built for evaluation harnesses that fan many concurrent generation
// requests out to a chosen model.
//
// A model is addressed by a "provider/name" string. The [Registry] resolves
// that string into a [Model] client backed by a registered provider
// [Backend], caches the client so equal requests observably share one
// instance, bounds in-flight calls per client with a FIFO connection
// limiter, and retries rate-limit and transient failures with exponential
// backoff.
//
// # Basic Usage
//
//	reg := modelgate.NewRegistry()
//	defer reg.Close()
//
//	m, err := reg.Get(ctx, "anthropic/claude-sonnet-4-5")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := m.Generate(ctx, "What is the capital of France?",
//	    modelgate.WithTemperature(0.7),
//	    modelgate.WithMaxTokens(1000),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Content)
//
// When no model string is given, the MODELGATE_MODEL environment variable is
// consulted, so harness code can leave model selection to the invocation
// environment.
//
// # Providers
//
// Provider backends live in the provider/ subpackages and register
// themselves on import:
//
//	import (
//	    _ "github.com/modelgate/modelgate/provider/anthropic"
//	    _ "github.com/modelgate/modelgate/provider/openai"
//	)
//
// Custom providers implement [Backend] and register a [Factory] with
// [Register]. Backends must return errors built with [NewRateLimitedError],
// [NewTransientError] or [NewFatalError] so the retry engine can classify
// them.
//
// # Concurrency
//
// Concurrent Generate calls on one client are legal; admission to the
// backend is bounded by the client's connection limit (default 10,
// configurable with [WithMaxConnections]) in arrival order. Retries happen
// inside the held connection slot, so a retrying call never exceeds the
// ceiling. Cancelling a queued call's context removes it from the queue
// without consuming a slot.
package modelgate
