package providers

import "time"

// Message is a single conversation message in normalized form. The gateway
// flattens multipart content to plain text before a request reaches an
// adapter, so Content is always a string here.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is the provider-agnostic completion request. Each
// adapter transforms it to its backend's wire format and silently drops
// any field the backend does not support.
type CompletionRequest struct {
	// Model is the model identifier. Empty means the provider default.
	Model string `json:"model"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Temperature controls randomness. Zero means "not set".
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling.
	TopP float64 `json:"top_p,omitempty"`

	// PresencePenalty reduces repetition (-2.0 to 2.0).
	PresencePenalty float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency (-2.0 to 2.0).
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`

	// Stop sequences that halt generation.
	Stop []string `json:"stop,omitempty"`

	// Stream requests an incremental response.
	Stream bool `json:"stream,omitempty"`
}

// CompletionResponse is the provider-agnostic completion response,
// normalized from each backend's wire format.
type CompletionResponse struct {
	// ID is the upstream response identifier.
	ID string `json:"id"`

	// Model is the model that generated the response.
	Model string `json:"model"`

	// Content is the generated text.
	Content string `json:"content"`

	// Thinking holds auxiliary reasoning blocks for backends that emit
	// them separately from text content. Preserved, not forwarded.
	Thinking []string `json:"thinking,omitempty"`

	// FinishReason indicates why generation stopped
	// (stop, length, content_filter).
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption as reported by the backend.
	// May be zero for backends that do not report usage.
	Usage TokenUsage `json:"usage"`

	// Created is the Unix timestamp of the response.
	Created int64 `json:"created"`
}

// StreamChunk is a single increment of a streamed completion.
type StreamChunk struct {
	// ID is the upstream response identifier (same across all chunks).
	ID string `json:"id"`

	// Model is the model generating the response.
	Model string `json:"model"`

	// Delta is the incremental text content.
	Delta string `json:"delta"`

	// Thinking is incremental reasoning content for backends that emit
	// it. Inspectable for diagnostics, never forwarded as text.
	Thinking string `json:"thinking,omitempty"`

	// FinishReason is set in the final chunk.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included when the backend reports it mid-stream.
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if an error occurred during streaming.
	Error error `json:"-"`

	// Created is the Unix timestamp of the chunk.
	Created int64 `json:"created"`
}

// ProviderConfig contains configuration for a single adapter instance.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "deepseek", "gigachat").
	Name string

	// Type is the adapter family (openai, anthropic, gigachat).
	Type string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// APIKey is the credential. For the gigachat family this is the
	// "client_id:client_secret" pair used in the OAuth exchange.
	APIKey string

	// AuthURL is the OAuth token endpoint for the gigachat family.
	AuthURL string

	// DefaultModel is used when a request does not name a model the
	// provider serves.
	DefaultModel string

	// Models lists model identifiers this provider serves.
	Models []string

	// Timeout is the transport request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// transport failures.
	MaxRetries int

	// DisableStreamingUsage marks backends whose mid-stream usage figures
	// are unreliable and must not be forwarded to clients.
	DisableStreamingUsage bool

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host connection pool size.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled.
	IdleConnTimeout time.Duration
}

// ResolveModel maps a requested model to one this provider serves,
// falling back to the configured default.
func (c ProviderConfig) ResolveModel(requested string) string {
	for _, m := range c.Models {
		if m == requested {
			return m
		}
	}
	return c.DefaultModel
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
