package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxyllm-hq/relay/pkg/providers"
)

const (
	// DefaultAuthURL is the Sber OAuth token endpoint.
	DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"

	// DefaultScope requests personal API access.
	DefaultScope = "GIGACHAT_API_PERS"

	// renewalBuffer is subtracted from token lifetime: a token within
	// five minutes of expiry is treated as expired and refreshed before
	// use, so requests never travel with a token about to lapse.
	renewalBuffer = 5 * time.Minute
)

// tokenManager caches the GigaChat OAuth access token and refreshes it
// on demand. Safe for concurrent use; concurrent refreshes collapse into
// a single exchange under the mutex.
type tokenManager struct {
	provider string
	authURL  string
	authKey  string // base64(client_id:client_secret)
	scope    string
	client   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time

	// now is swapped in tests
	now func() time.Time
}

// tokenResponse is the OAuth endpoint's reply. ExpiresAt is epoch
// milliseconds.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func newTokenManager(config providers.ProviderConfig, client *http.Client) (*tokenManager, error) {
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "client_id:client_secret credential is required",
		}
	}
	if !strings.Contains(config.APIKey, ":") {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "credential must be in client_id:client_secret form",
		}
	}

	authURL := config.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}

	return &tokenManager{
		provider: config.Name,
		authURL:  authURL,
		authKey:  base64.StdEncoding.EncodeToString([]byte(config.APIKey)),
		scope:    DefaultScope,
		client:   client,
		now:      time.Now,
	}, nil
}

// Token returns a valid access token, performing the OAuth exchange if no
// cached token exists or the cached one is within the renewal buffer of
// expiry.
func (t *tokenManager) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && t.now().Add(renewalBuffer).Before(t.expiresAt) {
		return t.accessToken, nil
	}

	return t.refreshLocked(ctx)
}

// Invalidate discards the cached token. Called when the completions API
// answers 401 despite a token we believed valid.
func (t *tokenManager) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accessToken = ""
	t.expiresAt = time.Time{}
}

// refreshLocked performs the OAuth exchange. Caller holds t.mu.
func (t *tokenManager) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("scope", t.scope)

	req, err := http.NewRequestWithContext(ctx, "POST", t.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	// Every exchange carries a fresh request identifier
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+t.authKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &providers.ProviderError{
			Provider: t.provider,
			Message:  "token exchange failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &providers.ParseError{
			Provider: t.provider,
			Message:  "failed to read token response",
			Err:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &providers.AuthError{
				Provider: t.provider,
				Message:  string(body),
			}
		}
		return "", &providers.ProviderError{
			Provider:   t.provider,
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &providers.ParseError{
			Provider: t.provider,
			Message:  "failed to parse token response",
			Err:      err,
		}
	}
	if tr.AccessToken == "" {
		return "", &providers.AuthError{
			Provider: t.provider,
			Message:  "token response contained no access_token",
		}
	}

	t.accessToken = tr.AccessToken
	t.expiresAt = time.UnixMilli(tr.ExpiresAt)

	slog.Info("access token refreshed",
		"provider", t.provider,
		"expires_at", t.expiresAt.Format(time.RFC3339),
	)

	return t.accessToken, nil
}
