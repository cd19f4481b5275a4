package proxy

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"proxyllm-hq/relay/pkg/proxy/types"
)

func parse(t *testing.T, body string) (*types.ChatCompletionRequest, error) {
	t.Helper()
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return ParseChatCompletionRequest(r)
}

func requestErrorOf(t *testing.T, err error) *RequestError {
	t.Helper()
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v (%T), want *RequestError", err, err)
	}
	return reqErr
}

func TestParseValidRequest(t *testing.T) {
	req, err := parse(t, `{
		"model": "deepseek-chat",
		"messages": [{"role": "user", "content": "hello"}],
		"temperature": 0.5,
		"stream": true,
		"stream_options": {"include_usage": true}
	}`)
	if err != nil {
		t.Fatalf("ParseChatCompletionRequest: %v", err)
	}

	if req.Model != "deepseek-chat" {
		t.Errorf("model = %q", req.Model)
	}
	if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
		t.Errorf("stream options dropped: stream=%v opts=%+v", req.Stream, req.StreamOptions)
	}
	if req.Temperature == nil || *req.Temperature != 0.5 {
		t.Errorf("temperature = %v", req.Temperature)
	}
}

func TestParseAcceptsUnknownFields(t *testing.T) {
	// Clients send fields the gateway does not interpret; they must not
	// fail the request.
	_, err := parse(t, `{
		"messages": [{"role": "user", "content": "hello"}],
		"logit_bias": {"50256": -100},
		"some_vendor_extension": {"nested": true}
	}`)
	if err != nil {
		t.Fatalf("unknown fields rejected: %v", err)
	}
}

func TestParseRoundTripsUnknownFields(t *testing.T) {
	req, err := parse(t, `{
		"messages": [{"role": "user", "content": "hello"}],
		"logit_bias": {"50256": -100},
		"some_vendor_extension": {"nested": true}
	}`)
	if err != nil {
		t.Fatalf("ParseChatCompletionRequest: %v", err)
	}

	if _, ok := req.Extra["logit_bias"]; !ok {
		t.Errorf("logit_bias not preserved: %v", req.Extra)
	}
	ext, ok := req.Extra["some_vendor_extension"].(map[string]interface{})
	if !ok || ext["nested"] != true {
		t.Errorf("vendor extension mangled: %v", req.Extra["some_vendor_extension"])
	}
	if _, ok := req.Extra["messages"]; ok {
		t.Error("interpreted field leaked into the extras")
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := merged["logit_bias"]; !ok {
		t.Error("logit_bias dropped on re-serialization")
	}
	if _, ok := merged["messages"]; !ok {
		t.Error("messages missing after the extras merge")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := parse(t, `{not json`)
	reqErr := requestErrorOf(t, err)

	if reqErr.Code != types.CodeInvalidJSON {
		t.Errorf("code = %q, want %q", reqErr.Code, types.CodeInvalidJSON)
	}
	if got := reqErr.ToErrorResponse().Error.HTTPStatusCode(); got != 400 {
		t.Errorf("status = %d, want 400", got)
	}
}

func TestParseValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no messages", `{"messages": []}`},
		{"bad role", `{"messages": [{"role": "robot", "content": "hi"}]}`},
		{"temperature out of range", `{"messages": [{"role": "user", "content": "hi"}], "temperature": 3.5}`},
		{"non-positive max_tokens", `{"messages": [{"role": "user", "content": "hi"}], "max_tokens": 0}`},
		{"top_p out of range", `{"messages": [{"role": "user", "content": "hi"}], "top_p": 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.body)
			reqErr := requestErrorOf(t, err)

			if reqErr.Type != types.ErrorTypeValidation {
				t.Errorf("type = %q, want %q", reqErr.Type, types.ErrorTypeValidation)
			}
			if got := reqErr.ToErrorResponse().Error.HTTPStatusCode(); got != 422 {
				t.Errorf("status = %d, want 422", got)
			}
		})
	}
}

func TestParseOversizedBody(t *testing.T) {
	big := `{"messages": [{"role": "user", "content": "` + strings.Repeat("x", MaxRequestBodySize) + `"}]}`
	_, err := parse(t, big)
	reqErr := requestErrorOf(t, err)

	if got := reqErr.ToErrorResponse().Error.HTTPStatusCode(); got != 400 {
		t.Errorf("status = %d, want 400", got)
	}
}
