package openai

import (
	"testing"

	"proxyllm-hq/relay/pkg/providers"
)

func TestTransformRequest(t *testing.T) {
	req := &providers.CompletionRequest{
		Model: "deepseek-chat",
		Messages: []providers.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
		TopP:        0.9,
		Stream:      true,
		Stop:        []string{"\n\n"},
	}

	out := TransformRequest(req)

	if out.Model != "deepseek-chat" {
		t.Errorf("model = %q", out.Model)
	}
	if len(out.Messages) != 2 || out.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", out.Messages)
	}
	if out.MaxTokens != 256 || out.Temperature != 0.7 || out.TopP != 0.9 {
		t.Errorf("options not forwarded: %+v", out)
	}
	if !out.Stream {
		t.Error("stream flag dropped")
	}
	if len(out.Stop) != 1 {
		t.Errorf("stop sequences = %v", out.Stop)
	}
}

func TestTransformResponse(t *testing.T) {
	resp := &Response{
		ID:      "cmp-1",
		Model:   "deepseek-reasoner",
		Created: 1700000000,
		Choices: []Choice{
			{
				Index: 0,
				Message: Message{
					Role:             "assistant",
					Content:          "the answer",
					ReasoningContent: "thinking it through",
				},
				FinishReason: "length",
			},
		},
		Usage: Usage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46},
	}

	out, err := TransformResponse(resp)
	if err != nil {
		t.Fatalf("TransformResponse: %v", err)
	}

	if out.Content != "the answer" {
		t.Errorf("content = %q", out.Content)
	}
	if len(out.Thinking) != 1 || out.Thinking[0] != "thinking it through" {
		t.Errorf("thinking = %v", out.Thinking)
	}
	if out.FinishReason != providers.FinishReasonLength {
		t.Errorf("finish reason = %q, want length", out.FinishReason)
	}
	if out.Usage.TotalTokens != 46 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestTransformResponseNoChoices(t *testing.T) {
	if _, err := TransformResponse(&Response{ID: "cmp-1"}); err == nil {
		t.Fatal("expected error for response without choices")
	}
}

func TestTransformStreamChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk StreamResponse
		check func(t *testing.T, out *providers.StreamChunk)
	}{
		{
			name: "content delta",
			chunk: StreamResponse{
				ID:      "cmp-1",
				Choices: []StreamChoice{{Delta: StreamDelta{Content: "hel"}}},
			},
			check: func(t *testing.T, out *providers.StreamChunk) {
				if out.Delta != "hel" {
					t.Errorf("delta = %q", out.Delta)
				}
				if out.FinishReason != "" {
					t.Errorf("finish reason = %q, want empty", out.FinishReason)
				}
			},
		},
		{
			name: "finish chunk",
			chunk: StreamResponse{
				Choices: []StreamChoice{{FinishReason: "stop"}},
			},
			check: func(t *testing.T, out *providers.StreamChunk) {
				if out.FinishReason != providers.FinishReasonStop {
					t.Errorf("finish reason = %q", out.FinishReason)
				}
			},
		},
		{
			name: "usage-only chunk with empty choices",
			chunk: StreamResponse{
				Choices: []StreamChoice{},
				Usage:   &Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
			},
			check: func(t *testing.T, out *providers.StreamChunk) {
				if out.Usage == nil || out.Usage.TotalTokens != 12 {
					t.Errorf("usage = %+v", out.Usage)
				}
				if out.Delta != "" {
					t.Errorf("delta = %q, want empty", out.Delta)
				}
			},
		},
		{
			name: "reasoning delta",
			chunk: StreamResponse{
				Choices: []StreamChoice{{Delta: StreamDelta{ReasoningContent: "hmm"}}},
			},
			check: func(t *testing.T, out *providers.StreamChunk) {
				if out.Thinking != "hmm" {
					t.Errorf("thinking = %q", out.Thinking)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := TransformStreamChunk(&tt.chunk)
			if err != nil {
				t.Fatalf("TransformStreamChunk: %v", err)
			}
			tt.check(t, out)
		})
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stop", providers.FinishReasonStop},
		{"length", providers.FinishReasonLength},
		{"max_tokens", providers.FinishReasonLength},
		{"content_filter", providers.FinishReasonContentFilter},
		{"tool_calls", "tool_calls"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
