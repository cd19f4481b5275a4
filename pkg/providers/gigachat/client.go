package gigachat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/providers/openai"
)

// Provider is the GigaChat adapter. The completions API is OpenAI-shaped,
// so the wire types and SSE reader come from the openai package; what
// differs is credential handling: a cached OAuth access token obtained
// from a separate endpoint, refreshed before expiry and re-fetched once
// when the API answers 401 anyway.
type Provider struct {
	*providers.HTTPProvider

	tokens *tokenManager
}

// NewProvider creates a new GigaChat provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "gigachat",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	}

	base := providers.NewHTTPProvider(config)

	tokens, err := newTokenManager(config, base.Client())
	if err != nil {
		return nil, err
	}

	p := &Provider{
		HTTPProvider: base,
		tokens:       tokens,
	}

	slog.Info("gigachat provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Complete sends a non-streaming completion request. A 401 from the
// completions API invalidates the cached token and triggers exactly one
// retry with a fresh one.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	wireReq := openai.TransformRequest(req)
	wireReq.Stream = false

	var wireResp openai.Response
	err := p.withToken(ctx, func(headers map[string]string) error {
		wireResp = openai.Response{}
		return p.DoJSONRequest(ctx, "POST", p.completionsURL(), wireReq, &wireResp, headers)
	})
	if err != nil {
		return nil, err
	}

	resp, err := openai.TransformResponse(&wireResp)
	if err != nil {
		return nil, &providers.ParseError{
			Provider: p.Name(),
			Message:  err.Error(),
		}
	}

	slog.Debug("completion request succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return resp, nil
}

// CompleteStream sends a streaming completion request.
func (p *Provider) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	wireReq := openai.TransformRequest(req)
	wireReq.Stream = true

	var stream *openai.StreamReader
	err := p.withToken(ctx, func(headers map[string]string) error {
		headers["Accept"] = "text/event-stream"
		var err error
		stream, err = openai.NewStreamReader(ctx, p.HTTPProvider, p.completionsURL(), wireReq, headers)
		return err
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					chunks <- &providers.StreamChunk{Error: err}
				}
				return
			}
			if chunk == nil {
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// withToken runs fn with an Authorization header from the token cache.
// On an auth failure the cached token is discarded and fn runs once more
// with a freshly exchanged token; a second failure is final.
func (p *Provider) withToken(ctx context.Context, fn func(headers map[string]string) error) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := p.tokens.Token(ctx)
		if err != nil {
			return err
		}

		err = fn(map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		})
		if err == nil {
			return nil
		}

		var authErr *providers.AuthError
		if errors.As(err, &authErr) && attempt == 0 {
			slog.Warn("access token rejected, refreshing once",
				"provider", p.Name(),
			)
			p.tokens.Invalidate()
			continue
		}

		return err
	}

	return &providers.AuthError{
		Provider: p.Name(),
		Message:  "token rejected after refresh",
	}
}

func (p *Provider) completionsURL() string {
	return fmt.Sprintf("%s/chat/completions", p.GetConfig().BaseURL)
}

// validateRequest validates the completion request.
func validateRequest(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{
			Field:   "request",
			Message: "request cannot be nil",
		}
	}
	if req.Model == "" {
		return &providers.ValidationError{
			Field:   "model",
			Message: "model is required",
		}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}
	return nil
}
