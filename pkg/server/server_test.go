package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/processing/costs"
	"proxyllm-hq/relay/pkg/processing/tokens"
	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return &providers.CompletionResponse{
		ID:           "resp-1",
		Model:        req.Model,
		Content:      "hi",
		FinishReason: providers.FinishReasonStop,
	}, nil
}

func (s *stubProvider) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	ch := make(chan *providers.StreamChunk, 2)
	ch <- &providers.StreamChunk{Delta: "hi", Model: req.Model}
	ch <- &providers.StreamChunk{FinishReason: providers.FinishReasonStop, Model: req.Model}
	close(ch)
	return ch, nil
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Type() string { return "openai" }
func (s *stubProvider) GetConfig() providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:         s.name,
		DefaultModel: "stub-model",
		Models:       []string{"stub-model"},
	}
}
func (s *stubProvider) SupportsStreamingUsage() bool { return true }
func (s *stubProvider) Close() error                 { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Telemetry.Metrics.Enabled = true

	g, err := gateway.New(gateway.Options{
		Providers: map[string]providers.Provider{
			"stub":  &stubProvider{name: "stub"},
			"other": &stubProvider{name: "other"},
		},
		DefaultProvider: "stub",
		Estimator:       tokens.NewSimpleEstimator(&cfg.Tokens),
		Calculator:      costs.NewCalculator(cfg),
		UpstreamTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}

	s := New(cfg, g, metrics.New(), "test")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["active_provider"] != "stub" {
		t.Errorf("active_provider = %v", body["active_provider"])
	}
}

func TestProviderSmokeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/test", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["response"] != "hi" {
		t.Errorf("response = %v, want hi", body["response"])
	}
}

func TestReadinessEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/health/ready", http.StatusOK)
	if body["status"] != "ready" {
		t.Errorf("status = %v, want ready", body["status"])
	}

	checks, ok := body["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("checks missing: %v", body)
	}
	if _, ok := checks["providers"]; !ok {
		t.Error("providers check not registered")
	}

	live := getJSON(t, srv.URL+"/health/live", http.StatusOK)
	if live["status"] != "ok" {
		t.Errorf("liveness status = %v", live["status"])
	}
}

func TestChatCompletionEndToEnd(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"model":"x","messages":[{"role":"user","content":"hello"}]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Choices[0].Message.Content != "hi" {
		t.Errorf("content = %q, want hi", body.Choices[0].Message.Content)
	}
	// tokenize("hello") + tokenize("hi") at the default 4 chars per token
	if body.Usage.TotalTokens != 2 {
		t.Errorf("total_tokens = %d, want 2", body.Usage.TotalTokens)
	}
}

func TestChatCompletionStreaming(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hello"}],"stream":true}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	var dataLines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
	}

	if len(dataLines) < 3 {
		t.Fatalf("got %d data lines, want at least delta, finish, [DONE]", len(dataLines))
	}
	if dataLines[len(dataLines)-1] != "[DONE]" {
		t.Errorf("stream not terminated with [DONE]: %q", dataLines[len(dataLines)-1])
	}

	var first struct {
		Object  string `json:"object"`
		Choices []struct {
			Delta struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(dataLines[0]), &first); err != nil {
		t.Fatalf("first chunk is not JSON: %v", err)
	}
	if first.Object != "chat.completion.chunk" {
		t.Errorf("object = %q", first.Object)
	}
	if first.Choices[0].Delta.Role != "assistant" || first.Choices[0].Delta.Content != "hi" {
		t.Errorf("first delta = %+v", first.Choices[0].Delta)
	}
}

func TestChatCompletionRejectsGet(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/chat/completions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestProviderSwitching(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/providers", http.StatusOK)
	if body["active_provider"] != "stub" {
		t.Fatalf("active_provider = %v", body["active_provider"])
	}

	resp, err := http.Post(srv.URL+"/switch-provider/other", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch status = %d, want 200", resp.StatusCode)
	}

	body = getJSON(t, srv.URL+"/providers", http.StatusOK)
	if body["active_provider"] != "other" {
		t.Errorf("active_provider = %v after switch, want other", body["active_provider"])
	}

	resp, err = http.Post(srv.URL+"/switch-provider/missing", "", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("switch to unknown provider status = %d, want 400", resp.StatusCode)
	}
}

func TestStatsAndLogs(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hello"}]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	stats := getJSON(t, srv.URL+"/stats", http.StatusOK)
	if stats["requests"].(float64) != 1 {
		t.Errorf("requests = %v, want 1", stats["requests"])
	}

	logs := getJSON(t, srv.URL+"/logs/all", http.StatusOK)
	entries := logs["logs"].([]interface{})
	if len(entries) != 2 {
		t.Errorf("merged log entries = %d, want request + response", len(entries))
	}

	reqs := getJSON(t, srv.URL+"/logs/requests", http.StatusOK)
	if len(reqs["requests"].([]interface{})) != 1 {
		t.Errorf("request log entries = %v", reqs["requests"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCORSPreflights(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/chat/completions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q, want the requesting origin", got)
	}
}
