package modelgate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ProviderArgs is an open-ended set of provider-specific parameters passed
// through to the backend factory uninterpreted.
type ProviderArgs map[string]any

// BackendConfig carries everything a factory needs to construct a backend.
type BackendConfig struct {
	// Model is the provider-specific model name (the part after the slash).
	Model string
	// BaseURL optionally overrides the provider endpoint.
	BaseURL string
	// APIKey optionally overrides the provider's environment credential.
	APIKey string
	// Config is the effective generation config at construction time.
	// Per-call configs are passed to Generate separately.
	Config GenerateConfig
	// Args are provider-specific extra parameters, uninterpreted by the core.
	Args ProviderArgs
}

// Backend performs generation calls against one provider. Implementations
// must be safe for concurrent use up to the client's connection limit, and
// must return categorized errors (see [CategorizedError]) so failures can
// be classified for retry.
type Backend interface {
	// Generate performs one generation call. cfg is the effective config
	// for this call, already merged from all layers.
	Generate(ctx context.Context, prompt string, cfg GenerateConfig) (*Response, error)

	// Close releases any resources held by the backend, such as network
	// handles. It is called at most once by the owning client.
	Close() error
}

// Factory constructs a Backend for one provider. A factory must not perform
// network calls; credential or argument problems should surface as errors
// immediately so they are reported as build failures rather than retried.
type Factory func(ctx context.Context, cfg BackendConfig) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a backend factory available under the given provider
// name. It is intended to be called from provider package init functions,
// database/sql driver style. Registering a duplicate name panics.
func Register(provider string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("modelgate: Register factory is nil")
	}
	if _, dup := factories[provider]; dup {
		panic("modelgate: Register called twice for provider " + provider)
	}
	factories[provider] = factory
}

// Providers returns the sorted names of all registered providers.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(provider string) (Factory, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	factory, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", provider, providersLocked())
	}
	return factory, nil
}

func providersLocked() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
