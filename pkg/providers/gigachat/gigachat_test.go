package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"proxyllm-hq/relay/pkg/providers"
)

// authServer fakes the OAuth endpoint, minting tok-1, tok-2, ... and
// recording the headers of every exchange.
type authServer struct {
	mu        sync.Mutex
	exchanges int
	rqUIDs    []string
	authz     []string
	expiresIn time.Duration
}

func (a *authServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.exchanges++
		n := a.exchanges
		a.rqUIDs = append(a.rqUIDs, r.Header.Get("RqUID"))
		a.authz = append(a.authz, r.Header.Get("Authorization"))
		expiresIn := a.expiresIn
		a.mu.Unlock()

		if r.FormValue("scope") != DefaultScope {
			http.Error(w, "bad scope", http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires_at":   time.Now().Add(expiresIn).UnixMilli(),
		})
	}
}

func (a *authServer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exchanges
}

func newTestTokenManager(t *testing.T, authURL string) *tokenManager {
	t.Helper()
	tm, err := newTokenManager(providers.ProviderConfig{
		Name:    "gigachat",
		APIKey:  "client-id:client-secret",
		AuthURL: authURL,
	}, http.DefaultClient)
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	return tm
}

func TestTokenManagerRequiresCredentialPair(t *testing.T) {
	_, err := newTokenManager(providers.ProviderConfig{
		Name:   "gigachat",
		APIKey: "no-separator",
	}, http.DefaultClient)

	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestTokenReusedWithinExpiry(t *testing.T) {
	auth := &authServer{expiresIn: 30 * time.Minute}
	srv := httptest.NewServer(auth.handler())
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)

	first, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	second, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}

	if first != second {
		t.Errorf("tokens differ: %q then %q", first, second)
	}
	if got := auth.count(); got != 1 {
		t.Errorf("exchanges = %d, want exactly 1", got)
	}

	if auth.authz[0] != "Basic "+base64.StdEncoding.EncodeToString([]byte("client-id:client-secret")) {
		t.Errorf("authorization header = %q", auth.authz[0])
	}
	if auth.rqUIDs[0] == "" {
		t.Error("exchange carried no RqUID")
	}
}

func TestTokenRenewedInsideExpiryBuffer(t *testing.T) {
	// The token expires in 3 minutes, inside the 5-minute renewal buffer,
	// so the second call must exchange again.
	auth := &authServer{expiresIn: 3 * time.Minute}
	srv := httptest.NewServer(auth.handler())
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)

	if _, err := tm.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if _, err := tm.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}

	if got := auth.count(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
	if auth.rqUIDs[0] == auth.rqUIDs[1] {
		t.Errorf("RqUID reused across exchanges: %q", auth.rqUIDs[0])
	}
}

func TestTokenInvalidateForcesExchange(t *testing.T) {
	auth := &authServer{expiresIn: 30 * time.Minute}
	srv := httptest.NewServer(auth.handler())
	defer srv.Close()

	tm := newTestTokenManager(t, srv.URL)

	first, _ := tm.Token(context.Background())
	tm.Invalidate()
	second, err := tm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}

	if first == second {
		t.Errorf("token unchanged after invalidation: %q", first)
	}
	if got := auth.count(); got != 2 {
		t.Errorf("exchanges = %d, want 2", got)
	}
}

// completionsServer rejects listed tokens with 401 and answers the rest
// with a fixed OpenAI-shape completion.
type completionsServer struct {
	mu       sync.Mutex
	calls    int
	rejected map[string]bool
	tokens   []string
}

func (c *completionsServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")

		c.mu.Lock()
		c.calls++
		c.tokens = append(c.tokens, token)
		reject := c.rejected[token]
		c.mu.Unlock()

		if reject {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "cmp-1",
			"model": "GigaChat",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "hi"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     3,
				"completion_tokens": 1,
				"total_tokens":      4,
			},
		})
	}
}

func newTestProvider(t *testing.T, authURL, baseURL string) *Provider {
	t.Helper()
	p, err := NewProvider(providers.ProviderConfig{
		Name:         "gigachat",
		APIKey:       "client-id:client-secret",
		AuthURL:      authURL,
		BaseURL:      baseURL,
		DefaultModel: "GigaChat",
		Models:       []string{"GigaChat"},
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func completionRequest() *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:    "GigaChat",
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	}
}

func TestCompleteRetriesOnceAfter401(t *testing.T) {
	auth := &authServer{expiresIn: 30 * time.Minute}
	authSrv := httptest.NewServer(auth.handler())
	defer authSrv.Close()

	// The first minted token is stale from the API's point of view; the
	// refreshed one works.
	api := &completionsServer{rejected: map[string]bool{"Bearer tok-1": true}}
	apiSrv := httptest.NewServer(api.handler())
	defer apiSrv.Close()

	p := newTestProvider(t, authSrv.URL, apiSrv.URL)

	resp, err := p.Complete(context.Background(), completionRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "hi" {
		t.Errorf("content = %q, want hi", resp.Content)
	}
	if got := auth.count(); got != 2 {
		t.Errorf("exchanges = %d, want 2 (initial + refresh after 401)", got)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.calls != 2 {
		t.Errorf("completions calls = %d, want 2", api.calls)
	}
	if api.tokens[1] != "Bearer tok-2" {
		t.Errorf("retry used %q, want the refreshed token", api.tokens[1])
	}
}

func TestCompleteGivesUpAfterSecond401(t *testing.T) {
	auth := &authServer{expiresIn: 30 * time.Minute}
	authSrv := httptest.NewServer(auth.handler())
	defer authSrv.Close()

	api := &completionsServer{rejected: map[string]bool{
		"Bearer tok-1": true,
		"Bearer tok-2": true,
	}}
	apiSrv := httptest.NewServer(api.handler())
	defer apiSrv.Close()

	p := newTestProvider(t, authSrv.URL, apiSrv.URL)

	_, err := p.Complete(context.Background(), completionRequest())

	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.calls != 2 {
		t.Errorf("completions calls = %d, want exactly 2 (no second retry)", api.calls)
	}
}
