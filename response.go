package modelgate

import "time"

// Usage reports token accounting for one generation call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Response is the uniform result of a generation call.
type Response struct {
	// Content is the completion text.
	Content string `json:"content,omitempty"`
	// Model is the "provider/model-name" that produced the response.
	Model string `json:"model,omitempty"`
	// StopReason is the model-reported reason generation ended, in the
	// provider's own vocabulary ("end_turn", "stop", "max_tokens", ...).
	StopReason string `json:"stopReason,omitempty"`
	// Usage is the token accounting reported by the provider.
	Usage Usage `json:"usage"`
	// Time is the elapsed duration of the successful backend call.
	Time time.Duration `json:"time,omitempty"`
}
