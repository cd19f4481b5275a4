package anthropic

import (
	"fmt"

	"proxyllm-hq/relay/pkg/providers"
)

// Anthropic messages API request/response types. MiniMax exposes the same
// shape, so both providers share this adapter.

// Request represents an Anthropic messages request.
type Request struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

// Message represents a message in Anthropic format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContentBlock represents a content block in an Anthropic response.
// Responses carry "text" blocks and, for reasoning models, "thinking"
// blocks.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// Response represents an Anthropic messages response.
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// Usage represents token usage in Anthropic format. The gateway remaps
// input_tokens/output_tokens onto the prompt/completion vocabulary.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent represents an event in the Anthropic SSE stream.
type StreamEvent struct {
	Type string `json:"type"`

	// For message_start
	Message *Response `json:"message,omitempty"`

	// For content_block_start
	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`

	// For content_block_delta and message_delta
	Delta *EventDelta `json:"delta,omitempty"`

	// For message_delta
	Usage *Usage `json:"usage,omitempty"`
}

// EventDelta carries the per-event payload. content_block_delta events use
// Type/Text/Thinking; message_delta events use StopReason.
type EventDelta struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	Thinking     string `json:"thinking,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// transformRequest transforms a normalized request to Anthropic format.
// System messages move to the top-level system field; max_tokens is
// mandatory on this API.
func transformRequest(req *providers.CompletionRequest) (*Request, error) {
	out := &Request{
		Model:         req.Model,
		Messages:      make([]Message, 0, len(req.Messages)),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        req.Stream,
		StopSequences: req.Stop,
	}

	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}

	var system string
	for _, msg := range req.Messages {
		if msg.Role == providers.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += msg.Content
			continue
		}
		out.Messages = append(out.Messages, Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	out.System = system

	if len(out.Messages) == 0 {
		return nil, &providers.ValidationError{
			Field:   "messages",
			Message: "at least one non-system message is required",
		}
	}

	return out, nil
}

// transformResponse transforms an Anthropic response to normalized format.
// Text blocks concatenate into Content; thinking blocks are collected
// separately and never mixed into the reply text.
func transformResponse(resp *Response) (*providers.CompletionResponse, error) {
	var content string
	var thinking []string

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "thinking":
			thinking = append(thinking, block.Thinking)
		}
	}

	return &providers.CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      content,
		Thinking:     thinking,
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// streamState tracks identity across stream events; only message_start
// carries the response ID and model.
type streamState struct {
	id    string
	model string
}

// transformStreamEvent transforms one Anthropic stream event to normalized
// format. Events with no client-visible payload return nil, nil.
func transformStreamEvent(event *StreamEvent, state *streamState) (*providers.StreamChunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			state.id = event.Message.ID
			state.model = event.Message.Model
		}
		return nil, nil

	case "content_block_start", "content_block_stop", "ping", "message_stop":
		return nil, nil

	case "content_block_delta":
		if event.Delta == nil {
			return nil, nil
		}
		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text == "" {
				return nil, nil
			}
			return &providers.StreamChunk{
				ID:    state.id,
				Model: state.model,
				Delta: event.Delta.Text,
			}, nil
		case "thinking_delta":
			if event.Delta.Thinking == "" {
				return nil, nil
			}
			return &providers.StreamChunk{
				ID:       state.id,
				Model:    state.model,
				Thinking: event.Delta.Thinking,
			}, nil
		default:
			return nil, nil
		}

	case "message_delta":
		chunk := &providers.StreamChunk{
			ID:    state.id,
			Model: state.model,
		}
		if event.Delta != nil {
			chunk.FinishReason = normalizeStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &providers.TokenUsage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
			}
		}
		return chunk, nil

	case "error":
		return nil, fmt.Errorf("stream error event from backend")

	default:
		// Unknown event types are forward compatibility, not failures
		return nil, nil
	}
}

// normalizeStopReason normalizes Anthropic stop reasons.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	default:
		return reason
	}
}
