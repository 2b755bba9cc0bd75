package modelgate

import (
	"os"
	"strconv"
	"time"
)

// DefaultMaxConnections bounds concurrent in-flight backend calls per client
// when no override is configured.
const DefaultMaxConnections = 10

// GenerateConfig holds generation parameters. Every field is optional;
// unset fields inherit from a lower-priority layer, and fields still unset
// after merging are left to the backend's own defaults.
//
// GenerateConfig is an immutable value object: Merge returns a new config
// and never mutates its inputs, so configs are safe to share and to use as
// part of a cache key.
type GenerateConfig struct {
	// Temperature is the sampling temperature.
	Temperature *float64 `json:"temperature,omitempty"`
	// TopP is the nucleus sampling cutoff.
	TopP *float64 `json:"topP,omitempty"`
	// MaxTokens caps the number of generated tokens.
	MaxTokens *int `json:"maxTokens,omitempty"`
	// StopSeqs are sequences that end generation.
	StopSeqs []string `json:"stopSeqs,omitempty"`
	// SystemMessage is prepended to the prompt by backends that support it.
	SystemMessage *string `json:"systemMessage,omitempty"`
	// Seed requests deterministic sampling from backends that support it.
	Seed *int64 `json:"seed,omitempty"`
	// Timeout bounds each generation attempt. Retries get a fresh budget.
	Timeout *time.Duration `json:"timeout,omitempty"`
	// MaxRetries caps generate attempts for rate-limited and transient
	// failures. The initial request counts as attempt 1.
	MaxRetries *int `json:"maxRetries,omitempty"`
	// MaxConnections bounds concurrent in-flight calls for the client
	// (default DefaultMaxConnections).
	MaxConnections *int `json:"maxConnections,omitempty"`
}

// Merge returns a new config where fields set in other take precedence and
// unset fields fall back to c. Neither input is mutated.
func (c GenerateConfig) Merge(other GenerateConfig) GenerateConfig {
	out := c
	if other.Temperature != nil {
		out.Temperature = other.Temperature
	}
	if other.TopP != nil {
		out.TopP = other.TopP
	}
	if other.MaxTokens != nil {
		out.MaxTokens = other.MaxTokens
	}
	if other.StopSeqs != nil {
		out.StopSeqs = other.StopSeqs
	}
	if other.SystemMessage != nil {
		out.SystemMessage = other.SystemMessage
	}
	if other.Seed != nil {
		out.Seed = other.Seed
	}
	if other.Timeout != nil {
		out.Timeout = other.Timeout
	}
	if other.MaxRetries != nil {
		out.MaxRetries = other.MaxRetries
	}
	if other.MaxConnections != nil {
		out.MaxConnections = other.MaxConnections
	}
	return out
}

// Resolve merges configuration layers in ascending precedence: the
// provider default, then environment overrides, then the call-site config.
// Identical inputs always yield identical output.
func Resolve(callSite, env, providerDefault GenerateConfig) GenerateConfig {
	return providerDefault.Merge(env).Merge(callSite)
}

// Environment variables recognized by ConfigFromEnv.
const (
	EnvTemperature    = "MODELGATE_TEMPERATURE"
	EnvTopP           = "MODELGATE_TOP_P"
	EnvMaxTokens      = "MODELGATE_MAX_TOKENS"
	EnvTimeout        = "MODELGATE_TIMEOUT"
	EnvMaxRetries     = "MODELGATE_MAX_RETRIES"
	EnvMaxConnections = "MODELGATE_MAX_CONNECTIONS"
)

// ConfigFromEnv builds the environment override layer from MODELGATE_*
// variables. Unset or unparsable variables leave the field unset.
func ConfigFromEnv() GenerateConfig {
	var cfg GenerateConfig
	if v, ok := envFloat(EnvTemperature); ok {
		cfg.Temperature = &v
	}
	if v, ok := envFloat(EnvTopP); ok {
		cfg.TopP = &v
	}
	if v, ok := envInt(EnvMaxTokens); ok {
		cfg.MaxTokens = &v
	}
	if v, ok := envDuration(EnvTimeout); ok {
		cfg.Timeout = &v
	}
	if v, ok := envInt(EnvMaxRetries); ok {
		cfg.MaxRetries = &v
	}
	if v, ok := envInt(EnvMaxConnections); ok {
		cfg.MaxConnections = &v
	}
	return cfg
}

func envFloat(key string) (float64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// envDuration accepts either a Go duration string ("30s") or a bare number
// of seconds.
func envDuration(key string) (time.Duration, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// Option is a functional option producing a call-site GenerateConfig.
type Option func(*GenerateConfig)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *GenerateConfig) {
		c.Temperature = &t
	}
}

// WithTopP sets the nucleus sampling cutoff.
func WithTopP(p float64) Option {
	return func(c *GenerateConfig) {
		c.TopP = &p
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(c *GenerateConfig) {
		c.MaxTokens = &n
	}
}

// WithStopSeqs sets the sequences that end generation.
func WithStopSeqs(seqs ...string) Option {
	return func(c *GenerateConfig) {
		c.StopSeqs = seqs
	}
}

// WithSystemMessage sets the system message.
func WithSystemMessage(msg string) Option {
	return func(c *GenerateConfig) {
		c.SystemMessage = &msg
	}
}

// WithSeed requests deterministic sampling.
func WithSeed(seed int64) Option {
	return func(c *GenerateConfig) {
		c.Seed = &seed
	}
}

// WithTimeout bounds each generation attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *GenerateConfig) {
		c.Timeout = &d
	}
}

// WithMaxRetries caps generate attempts for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *GenerateConfig) {
		c.MaxRetries = &n
	}
}

// WithMaxConnections bounds concurrent in-flight calls for the client.
func WithMaxConnections(n int) Option {
	return func(c *GenerateConfig) {
		c.MaxConnections = &n
	}
}

// ApplyOptions folds functional options into a GenerateConfig.
func ApplyOptions(opts ...Option) GenerateConfig {
	var cfg GenerateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
