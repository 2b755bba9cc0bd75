package modelgate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// GetOption configures a single [Registry.Get] call.
type GetOption func(*getOptions)

type getOptions struct {
	config    GenerateConfig
	args      ProviderArgs
	baseURL   string
	apiKey    string
	modelOpts []ModelOption
	memoize   bool
}

// WithConfig supplies the call-site generation config. It takes precedence
// over environment overrides and provider defaults.
func WithConfig(cfg GenerateConfig) GetOption {
	return func(o *getOptions) {
		o.config = cfg
	}
}

// WithGenerateOptions is a convenience form of WithConfig built from
// functional options.
func WithGenerateOptions(opts ...Option) GetOption {
	return func(o *getOptions) {
		o.config = ApplyOptions(opts...)
	}
}

// WithProviderArgs supplies provider-specific extra parameters, passed
// through to the backend factory uninterpreted.
func WithProviderArgs(args ProviderArgs) GetOption {
	return func(o *getOptions) {
		o.args = args
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(url string) GetOption {
	return func(o *getOptions) {
		o.baseURL = url
	}
}

// WithAPIKey overrides the provider's environment credential.
func WithAPIKey(key string) GetOption {
	return func(o *getOptions) {
		o.apiKey = key
	}
}

// WithEvents attaches an event channel to the client. Events are sent
// non-blocking; a full channel drops them.
func WithEvents(ch chan<- Event) GetOption {
	return func(o *getOptions) {
		o.modelOpts = append(o.modelOpts, WithEventChannel(ch))
	}
}

// WithModelOptions forwards construction options to the built client,
// such as [WithRetryPolicy]. They do not participate in the cache key, so
// the options of whichever caller builds the client win.
func WithModelOptions(opts ...ModelOption) GetOption {
	return func(o *getOptions) {
		o.modelOpts = append(o.modelOpts, opts...)
	}
}

// WithoutMemoization constructs a fresh client owned solely by the caller
// instead of consulting the registry cache. The caller is responsible for
// closing it.
func WithoutMemoization() GetOption {
	return func(o *getOptions) {
		o.memoize = false
	}
}

// Registry resolves model strings into cached [Model] clients. Repeated
// Get calls with an equal model, config, and provider args observably
// share one client and therefore one connection limiter. Construction is
// race-free: concurrent Get calls with an identical key build exactly one
// backend.
//
// A Registry is process-wide state scoped to an explicit object so tests
// can construct isolated instances; [Default] serves the common case.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Model
	closed  bool
	group   singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Model)}
}

// Get resolves a "provider/model-name" string into a client. An empty
// model string falls back to the MODELGATE_MODEL environment variable.
// Unless WithoutMemoization is given, an existing client for the same
// model, effective config, and provider args is reused.
func (r *Registry) Get(ctx context.Context, model string, opts ...GetOption) (*Model, error) {
	o := getOptions{memoize: true}
	for _, opt := range opts {
		opt(&o)
	}

	name, err := ParseName(model)
	if err != nil {
		return nil, err
	}

	// Effective config: call-site over environment. Provider defaults
	// apply inside the backend for fields still unset.
	cfg := ConfigFromEnv().Merge(o.config)

	if !o.memoize {
		return r.build(ctx, name, cfg, o)
	}

	key := clientKey(name, cfg, o)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if m, ok := r.clients[key]; ok {
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Another caller may have completed the build while we queued
		// behind the flight group.
		r.mu.Lock()
		if m, ok := r.clients[key]; ok {
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()

		m, err := r.build(ctx, name, cfg, o)
		if err != nil {
			return nil, err
		}

		// The client becomes visible only after it is fully constructed.
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			m.Close()
			return nil, ErrRegistryClosed
		}
		r.clients[key] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// build constructs an unregistered client.
func (r *Registry) build(ctx context.Context, name Name, cfg GenerateConfig, o getOptions) (*Model, error) {
	factory, err := lookupFactory(name.Provider)
	if err != nil {
		return nil, &BuildError{Model: name, Err: err}
	}

	backend, err := factory(ctx, BackendConfig{
		Model:   name.Model,
		BaseURL: o.baseURL,
		APIKey:  o.apiKey,
		Config:  cfg,
		Args:    o.args,
	})
	if err != nil {
		return nil, &BuildError{Model: name, Err: err}
	}

	return NewModel(name, backend, cfg, o.modelOpts...), nil
}

// ResolveAll resolves a comma-separated list of model strings into
// clients, sharing cached instances where keys match. An empty list falls
// back to MODELGATE_MODEL.
func (r *Registry) ResolveAll(ctx context.Context, models string, opts ...GetOption) ([]*Model, error) {
	var names []string
	for _, m := range strings.Split(models, ",") {
		if m = strings.TrimSpace(m); m != "" {
			names = append(names, m)
		}
	}
	if len(names) == 0 {
		names = []string{""} // let Get apply the env fallback
	}

	out := make([]*Model, 0, len(names))
	for _, name := range names {
		m, err := r.Get(ctx, name, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close tears down the registry: every cached client is closed and
// evicted, and subsequent Get calls fail with ErrRegistryClosed. Callers
// still holding client references see ErrClientClosed from Generate.
// The first close error, if any, is returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	clients := make([]*Model, 0, len(r.clients))
	for _, m := range r.clients {
		clients = append(clients, m)
	}
	r.clients = make(map[string]*Model)
	r.mu.Unlock()

	var firstErr error
	for _, m := range clients {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// clientKey derives the deterministic cache key. Key equality implies
// configuration equality: the key embeds the canonical JSON of the
// effective config and provider args (encoding/json sorts map keys, so
// equal args always serialize identically).
func clientKey(name Name, cfg GenerateConfig, o getOptions) string {
	cfgJSON, _ := json.Marshal(cfg)
	argsJSON, _ := json.Marshal(o.args)
	return fmt.Sprintf("%s|%s|%s|%s|%s", name, cfgJSON, o.baseURL, o.apiKey, argsJSON)
}

// Default is the process-wide registry used by the package-level helpers.
var Default = NewRegistry()

// Get resolves a model through the [Default] registry.
func Get(ctx context.Context, model string, opts ...GetOption) (*Model, error) {
	return Default.Get(ctx, model, opts...)
}
