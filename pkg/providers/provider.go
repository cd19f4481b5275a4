package providers

import "context"

// Provider is the interface implemented by all backend adapters.
//
// Adapters translate between the normalized request/response types and a
// backend's wire format. They are safe for concurrent use; a single adapter
// instance serves all requests routed to its provider.
type Provider interface {
	// Complete performs a non-streaming completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream performs a streaming completion request. The returned
	// channel is closed when the stream ends; a chunk with Error set
	// terminates the stream.
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// Name returns the provider identifier (e.g., "deepseek").
	Name() string

	// Type returns the adapter family (openai, anthropic, gigachat).
	Type() string

	// GetConfig returns the provider configuration.
	GetConfig() ProviderConfig

	// SupportsStreamingUsage reports whether usage figures reported by this
	// backend mid-stream are trustworthy. When false the gateway recomputes
	// usage from accumulated text and omits backend-reported usage from
	// streamed replies.
	SupportsStreamingUsage() bool

	// Close releases resources held by the provider.
	Close() error
}
