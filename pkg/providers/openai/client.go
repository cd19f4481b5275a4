package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"proxyllm-hq/relay/pkg/providers"
)

// Provider is the adapter for OpenAI-compatible backends. DeepSeek,
// OpenRouter, xAI and local inference servers differ only in base URL,
// credential, and model list.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new OpenAI-compatible provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required",
		}
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config),
	}

	slog.Info("openai-compatible provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Complete sends a non-streaming completion request.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	wireReq := TransformRequest(req)
	wireReq.Stream = false

	var wireResp Response
	if err := p.DoJSONRequest(ctx, "POST", p.completionsURL(), wireReq, &wireResp, p.headers()); err != nil {
		return nil, err
	}

	resp, err := TransformResponse(&wireResp)
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

	wireReq := TransformRequest(req)
	wireReq.Stream = true

	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := NewStreamReader(ctx, p.HTTPProvider, p.completionsURL(), wireReq, headers)
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

func (p *Provider) completionsURL() string {
	return fmt.Sprintf("%s/chat/completions", p.GetConfig().BaseURL)
}

func (p *Provider) headers() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if key := p.GetConfig().APIKey; key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	return headers
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
