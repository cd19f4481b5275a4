package types

import (
	"encoding/json"
	"strings"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion
// request. Fields outside this set are accepted on the wire and kept in
// Extra: clients built against richer backends must keep working against
// the narrowest one, and their payloads must survive re-serialization.
type ChatCompletionRequest struct {
	// Model is the ID of the model to use. Optional; the active provider's
	// default model is substituted when empty or unknown.
	Model string `json:"model"`

	// Messages is the conversation history as a list of messages.
	Messages []Message `json:"messages"`

	// Temperature controls randomness in the response (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	// Optional; the gateway substitutes a default when unset.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`

	// Stream enables server-sent events (SSE) streaming.
	Stream bool `json:"stream,omitempty"`

	// StreamOptions carries streaming flags; only include_usage matters.
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	// Stop is a list of sequences where generation stops.
	Stop []string `json:"stop,omitempty"`

	// PresencePenalty penalizes tokens already present (-2.0 to 2.0).
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty penalizes tokens by frequency (-2.0 to 2.0).
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// User is an end-user identifier. Accepted, not forwarded.
	User string `json:"user,omitempty"`

	// Extra holds unrecognized top-level fields, preserved but never
	// interpreted. They round-trip through MarshalJSON.
	Extra map[string]interface{} `json:"-"`
}

// requestFields is the set of interpreted top-level keys; everything else
// lands in Extra.
var requestFields = map[string]struct{}{
	"model":             {},
	"messages":          {},
	"temperature":       {},
	"max_tokens":        {},
	"top_p":             {},
	"stream":            {},
	"stream_options":    {},
	"stop":              {},
	"presence_penalty":  {},
	"frequency_penalty": {},
	"user":              {},
}

// UnmarshalJSON decodes the interpreted fields and collects the rest
// into Extra.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type plain ChatCompletionRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range requestFields {
		delete(raw, key)
	}
	if len(raw) == 0 {
		r.Extra = nil
		return nil
	}

	r.Extra = make(map[string]interface{}, len(raw))
	for key, value := range raw {
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		r.Extra[key] = v
	}
	return nil
}

// MarshalJSON re-serializes the request with Extra merged back in.
// Interpreted fields always win over a same-named Extra entry.
func (r ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	type plain ChatCompletionRequest
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]interface{}, len(r.Extra)+len(requestFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := requestFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// StreamOptions mirrors the OpenAI stream_options object.
type StreamOptions struct {
	// IncludeUsage requests a final usage-bearing chunk before [DONE].
	IncludeUsage bool `json:"include_usage"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "user", "assistant").
	Role string `json:"role"`

	// Content is the text content. Clients may send a plain string or an
	// array of content parts; ContentText flattens either form.
	Content interface{} `json:"content"`

	// Name is the name of the author (optional).
	Name string `json:"name,omitempty"`
}

// ContentText flattens the message content to a plain string. Part arrays
// concatenate their text fields; anything else round-trips through JSON
// so no client payload is ever dropped silently.
func (m *Message) ContentText() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []interface{}:
		var sb strings.Builder
		for _, part := range c {
			pm, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		raw, err := json.Marshal(c)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Validate checks that required fields are present and within range.
func (r *ChatCompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}

	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   "messages",
				Message: "message role is required",
				Index:   i,
			}
		}
		switch msg.Role {
		case "system", "user", "assistant", "tool":
		default:
			return &ValidationError{
				Field:   "messages",
				Message: "role must be one of: system, user, assistant, tool",
				Index:   i,
			}
		}
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return &ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0.0 and 2.0",
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ValidationError{
			Field:   "max_tokens",
			Message: "max_tokens must be positive",
		}
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return &ValidationError{
			Field:   "top_p",
			Message: "top_p must be between 0.0 and 1.0",
		}
	}

	return nil
}

// ValidationError describes a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Index   int
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
