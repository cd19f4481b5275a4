package anthropic

import (
	"errors"
	"testing"

	"proxyllm-hq/relay/pkg/providers"
)

func TestTransformRequestSystemExtraction(t *testing.T) {
	req := &providers.CompletionRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []providers.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "system", Content: "answer in English"},
			{Role: "assistant", Content: "hi"},
		},
		MaxTokens: 256,
	}

	out, err := transformRequest(req)
	if err != nil {
		t.Fatalf("transformRequest: %v", err)
	}

	if out.System != "be brief\nanswer in English" {
		t.Errorf("system = %q", out.System)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %+v, want system messages removed", out.Messages)
	}
	if out.Messages[0].Role != "user" || out.Messages[1].Role != "assistant" {
		t.Errorf("message order changed: %+v", out.Messages)
	}
	if out.MaxTokens != 256 {
		t.Errorf("max_tokens = %d", out.MaxTokens)
	}
}

func TestTransformRequestMaxTokensMandatory(t *testing.T) {
	req := &providers.CompletionRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	}

	out, err := transformRequest(req)
	if err != nil {
		t.Fatalf("transformRequest: %v", err)
	}
	if out.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d, want the 4096 fallback", out.MaxTokens)
	}
}

func TestTransformRequestOnlySystemMessages(t *testing.T) {
	req := &providers.CompletionRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []providers.Message{{Role: "system", Content: "be brief"}},
	}

	_, err := transformRequest(req)
	var valErr *providers.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestTransformResponse(t *testing.T) {
	resp := &Response{
		ID:    "msg-1",
		Model: "claude-sonnet-4-20250514",
		Content: []ContentBlock{
			{Type: "thinking", Thinking: "let me think"},
			{Type: "text", Text: "part one"},
			{Type: "text", Text: " part two"},
		},
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: 10, OutputTokens: 20},
	}

	out, err := transformResponse(resp)
	if err != nil {
		t.Fatalf("transformResponse: %v", err)
	}

	if out.Content != "part one part two" {
		t.Errorf("content = %q", out.Content)
	}
	if len(out.Thinking) != 1 || out.Thinking[0] != "let me think" {
		t.Errorf("thinking = %v", out.Thinking)
	}
	if out.FinishReason != providers.FinishReasonStop {
		t.Errorf("finish reason = %q", out.FinishReason)
	}

	// input_tokens/output_tokens remap onto the prompt/completion
	// vocabulary with the total derived.
	if out.Usage.PromptTokens != 10 || out.Usage.CompletionTokens != 20 || out.Usage.TotalTokens != 30 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestTransformStreamEvents(t *testing.T) {
	state := &streamState{}

	start := &StreamEvent{
		Type:    "message_start",
		Message: &Response{ID: "msg-1", Model: "claude-sonnet-4-20250514"},
	}
	chunk, err := transformStreamEvent(start, state)
	if err != nil || chunk != nil {
		t.Fatalf("message_start = (%v, %v), want (nil, nil)", chunk, err)
	}
	if state.id != "msg-1" {
		t.Fatalf("state not seeded: %+v", state)
	}

	text := &StreamEvent{
		Type:  "content_block_delta",
		Delta: &EventDelta{Type: "text_delta", Text: "hel"},
	}
	chunk, err = transformStreamEvent(text, state)
	if err != nil {
		t.Fatalf("text_delta: %v", err)
	}
	if chunk.Delta != "hel" || chunk.ID != "msg-1" {
		t.Errorf("text chunk = %+v", chunk)
	}

	thinking := &StreamEvent{
		Type:  "content_block_delta",
		Delta: &EventDelta{Type: "thinking_delta", Thinking: "hmm"},
	}
	chunk, err = transformStreamEvent(thinking, state)
	if err != nil {
		t.Fatalf("thinking_delta: %v", err)
	}
	if chunk.Thinking != "hmm" || chunk.Delta != "" {
		t.Errorf("thinking chunk = %+v", chunk)
	}

	finish := &StreamEvent{
		Type:  "message_delta",
		Delta: &EventDelta{StopReason: "max_tokens"},
		Usage: &Usage{InputTokens: 5, OutputTokens: 9},
	}
	chunk, err = transformStreamEvent(finish, state)
	if err != nil {
		t.Fatalf("message_delta: %v", err)
	}
	if chunk.FinishReason != providers.FinishReasonLength {
		t.Errorf("finish reason = %q", chunk.FinishReason)
	}
	if chunk.Usage == nil || chunk.Usage.TotalTokens != 14 {
		t.Errorf("usage = %+v", chunk.Usage)
	}

	for _, silent := range []string{"ping", "content_block_start", "content_block_stop", "message_stop", "some_future_event"} {
		chunk, err = transformStreamEvent(&StreamEvent{Type: silent}, state)
		if err != nil || chunk != nil {
			t.Errorf("%s = (%v, %v), want (nil, nil)", silent, chunk, err)
		}
	}

	if _, err = transformStreamEvent(&StreamEvent{Type: "error"}, state); err == nil {
		t.Error("error event did not surface an error")
	}
}

func TestNormalizeStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"end_turn", providers.FinishReasonStop},
		{"stop_sequence", providers.FinishReasonStop},
		{"max_tokens", providers.FinishReasonLength},
		{"tool_use", "tool_use"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeStopReason(tt.in); got != tt.want {
			t.Errorf("normalizeStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
