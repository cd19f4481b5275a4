package types

// ChatCompletionResponse represents an OpenAI-compatible chat completion
// response, returned for non-streaming requests.
type ChatCompletionResponse struct {
	// ID is a unique identifier for the chat completion.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices is a list of completion choices (always exactly one here).
	Choices []Choice `json:"choices"`

	// Usage contains token usage statistics.
	Usage Usage `json:"usage"`
}

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of this choice.
	Index int `json:"index"`

	// Message is the generated message.
	Message ResponseMessage `json:"message"`

	// FinishReason explains why the model stopped generating tokens.
	FinishReason string `json:"finish_reason"`
}

// ResponseMessage is the assistant message in a completion choice.
type ResponseMessage struct {
	// Role is always "assistant".
	Role string `json:"role"`

	// Content is the generated text.
	Content string `json:"content"`

	// ReasoningContent carries reasoning text for models that emit it
	// separately. DeepSeek-style extension field.
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Usage contains token usage statistics.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens (prompt + completion).
	TotalTokens int `json:"total_tokens"`

	// PromptTokensDetails breaks down prompt token provenance.
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`

	// PromptCacheMissTokens counts prompt tokens not served from cache.
	// DeepSeek-style extension reported alongside PromptTokensDetails in
	// streaming usage payloads.
	PromptCacheMissTokens int `json:"prompt_cache_miss_tokens,omitempty"`
}

// PromptTokensDetails reports prompt-cache accounting.
type PromptTokensDetails struct {
	// CachedTokens is the number of prompt tokens served from cache.
	CachedTokens int `json:"cached_tokens"`
}

// ChatCompletionStreamChunk represents a chunk in a streaming response,
// sent as Server-Sent Events when stream=true.
type ChatCompletionStreamChunk struct {
	// ID is a unique identifier, constant across all chunks of a response.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the chunk was created.
	Created int64 `json:"created"`

	// Model is the model used for the completion.
	Model string `json:"model"`

	// Choices is a list of streaming choices. Empty in a trailing
	// usage-only chunk.
	Choices []StreamChoice `json:"choices"`

	// Usage is attached to the final chunk when the client asked for it
	// via stream_options.include_usage.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamChoice represents a single choice in a streaming response.
type StreamChoice struct {
	// Index is the index of this choice.
	Index int `json:"index"`

	// Delta contains incremental content.
	Delta Delta `json:"delta"`

	// FinishReason is null until the final content chunk.
	FinishReason *string `json:"finish_reason"`
}

// Delta contains incremental content in a streaming response.
type Delta struct {
	// Role is the role of the message author (only in the first chunk).
	Role string `json:"role,omitempty"`

	// Content is the incremental text content.
	Content string `json:"content,omitempty"`

	// ReasoningContent is incremental reasoning text. The key is present
	// on every delta, null when there is none; some clients read it
	// unconditionally.
	ReasoningContent *string `json:"reasoning_content"`
}

// Object type constants.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
)
