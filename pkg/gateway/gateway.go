package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/processing/costs"
	"proxyllm-hq/relay/pkg/processing/tokens"
	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/proxy/types"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
	"proxyllm-hq/relay/pkg/usage"
)

// DefaultMaxTokens is substituted when a request does not set max_tokens.
// Anthropic-format backends require the field, so the default applies
// uniformly rather than per adapter.
const DefaultMaxTokens = 1000

// ErrProviderNotFound is returned by SwitchProvider for unknown or
// disabled provider names.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// activeProvider is the unit of atomic switching: name and adapter travel
// together so a dispatch never observes a half-switched pair.
type activeProvider struct {
	name     string
	provider providers.Provider
}

// Gateway routes chat completions to the active provider adapter and
// records every exchange in the usage ledger.
//
// The active provider is an atomic snapshot: each dispatch pins the pair
// (name, adapter) once and uses it for the request's full lifetime, so a
// concurrent switch never splits a request across providers.
type Gateway struct {
	mu        sync.RWMutex
	providers map[string]providers.Provider

	active atomic.Pointer[activeProvider]

	estimator tokens.Estimator
	calc      *costs.Calculator
	ledger    *usage.Ledger
	metrics   *metrics.Metrics

	upstreamTimeout time.Duration
}

// ProviderInfo describes one configured provider for the admin surface.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Models []string `json:"models"`
	Active bool     `json:"active"`
}

// Options carries the gateway's collaborators.
type Options struct {
	Providers       map[string]providers.Provider
	DefaultProvider string
	Estimator       tokens.Estimator
	Calculator      *costs.Calculator
	Ledger          *usage.Ledger
	Metrics         *metrics.Metrics
	UpstreamTimeout time.Duration
}

// New creates a gateway over the given provider set. The default provider
// is activated when present; otherwise "local", otherwise any enabled
// provider in name order.
func New(opts Options) (*Gateway, error) {
	if len(opts.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = config.DefaultUpstreamTimeout
	}
	if opts.Ledger == nil {
		opts.Ledger = usage.NewLedger()
	}

	g := &Gateway{
		providers:       opts.Providers,
		estimator:       opts.Estimator,
		calc:            opts.Calculator,
		ledger:          opts.Ledger,
		metrics:         opts.Metrics,
		upstreamTimeout: opts.UpstreamTimeout,
	}

	name := opts.DefaultProvider
	if _, ok := opts.Providers[name]; !ok {
		if _, ok := opts.Providers["local"]; ok {
			name = "local"
		} else {
			names := make([]string, 0, len(opts.Providers))
			for n := range opts.Providers {
				names = append(names, n)
			}
			sort.Strings(names)
			name = names[0]
		}
	}

	g.active.Store(&activeProvider{name: name, provider: opts.Providers[name]})
	slog.Info("gateway initialized",
		"active_provider", name,
		"providers", len(opts.Providers),
	)

	return g, nil
}

// ActiveProvider returns the name of the currently active provider.
func (g *Gateway) ActiveProvider() string {
	return g.active.Load().name
}

// SwitchProvider makes the named provider the target of subsequent
// dispatches. In-flight requests finish on the provider they started on.
func (g *Gateway) SwitchProvider(name string) error {
	g.mu.RLock()
	provider, ok := g.providers[name]
	g.mu.RUnlock()
	if !ok {
		return &ErrProviderNotFound{Name: name}
	}

	previous := g.active.Swap(&activeProvider{name: name, provider: provider})
	slog.Info("active provider switched",
		"from", previous.name,
		"to", name,
	)

	if g.metrics != nil {
		g.metrics.ProviderSwitches.Inc()
	}

	return nil
}

// Providers lists all configured providers, active one flagged.
func (g *Gateway) Providers() []ProviderInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	active := g.active.Load().name

	infos := make([]ProviderInfo, 0, len(g.providers))
	for name, p := range g.providers {
		infos = append(infos, ProviderInfo{
			Name:   name,
			Type:   p.Type(),
			Models: p.GetConfig().Models,
			Active: name == active,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// SetProviders replaces the provider set after a configuration reload.
// The active provider keeps its name when still present, otherwise the
// gateway falls back as in New. Removed adapters are closed.
func (g *Gateway) SetProviders(newProviders map[string]providers.Provider) {
	if len(newProviders) == 0 {
		slog.Warn("ignoring provider reload with empty set")
		return
	}

	g.mu.Lock()
	old := g.providers
	g.providers = newProviders
	g.mu.Unlock()

	current := g.active.Load()
	if p, ok := newProviders[current.name]; ok {
		g.active.Store(&activeProvider{name: current.name, provider: p})
	} else {
		names := make([]string, 0, len(newProviders))
		for n := range newProviders {
			names = append(names, n)
		}
		sort.Strings(names)
		next := names[0]
		if _, ok := newProviders["local"]; ok {
			next = "local"
		}
		g.active.Store(&activeProvider{name: next, provider: newProviders[next]})
		slog.Warn("active provider removed on reload, falling back",
			"removed", current.name,
			"fallback", next,
		)
	}

	for name, p := range old {
		if _, kept := newProviders[name]; !kept {
			p.Close()
		}
	}
}

// Ledger exposes the usage ledger for the admin surface.
func (g *Gateway) Ledger() *usage.Ledger {
	return g.ledger
}

// Close closes all provider adapters.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.providers {
		p.Close()
	}
	return nil
}

// normalizeRequest converts the wire request to the provider-agnostic
// form: multipart content flattens to text, the model maps into the
// provider's set, and max_tokens gets its default.
func normalizeRequest(req *types.ChatCompletionRequest, provider providers.Provider) *providers.CompletionRequest {
	messages := make([]providers.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = providers.Message{
			Role:    m.Role,
			Content: m.ContentText(),
		}
	}

	out := &providers.CompletionRequest{
		Model:     provider.GetConfig().ResolveModel(req.Model),
		Messages:  messages,
		MaxTokens: DefaultMaxTokens,
		Stream:    req.Stream,
		Stop:      req.Stop,
	}

	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	if req.PresencePenalty != nil {
		out.PresencePenalty = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		out.FrequencyPenalty = *req.FrequencyPenalty
	}

	return out
}

// HandleCompletion serves a non-streaming chat completion.
func (g *Gateway) HandleCompletion(ctx context.Context, req *types.ChatCompletionRequest, requestID string) (*types.ChatCompletionResponse, error) {
	snapshot := g.active.Load()
	normalized := normalizeRequest(req, snapshot.provider)

	g.recordRequest(requestID, snapshot.name, normalized, false)

	ctx, cancel := context.WithTimeout(ctx, g.upstreamTimeout)
	defer cancel()

	start := time.Now()
	resp, err := snapshot.provider.Complete(ctx, normalized)
	duration := time.Since(start)

	if err != nil {
		g.recordResponse(usage.ResponseLog{
			ID:        uuid.NewString(),
			RequestID: requestID,
			Timestamp: time.Now(),
			Provider:  snapshot.name,
			Model:     normalized.Model,
			Status:    "error",
			Duration:  duration,
		})
		g.observe(snapshot.name, "error", duration, nil, 0)
		return nil, err
	}

	u := resp.Usage
	if u.PromptTokens == 0 && g.estimator != nil {
		u.PromptTokens = g.estimator.EstimateMessages(normalized.Messages, normalized.Model)
	}
	if u.CompletionTokens == 0 && g.estimator != nil && resp.Content != "" {
		u.CompletionTokens = g.estimator.EstimateText(resp.Content, normalized.Model)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens

	var cost float64
	if g.calc != nil {
		cost = g.calc.EstimateCost(snapshot.name, normalized.Model, u.PromptTokens, u.CompletionTokens, false)
	}

	g.recordResponse(usage.ResponseLog{
		ID:               orID(resp.ID),
		RequestID:        requestID,
		Timestamp:        time.Now(),
		Provider:         snapshot.name,
		Model:            normalized.Model,
		Status:           "ok",
		Duration:         duration,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		Cost:             cost,
		Preview:          preview(resp.Content),
	})
	g.observe(snapshot.name, "ok", duration, &u, cost)

	return encodeResponse(resp, normalized.Model, u), nil
}

// HandleCompletionStream serves a streaming chat completion. The returned
// channel yields OpenAI-format chunks; a StreamEvent with Err set ends
// the stream early.
func (g *Gateway) HandleCompletionStream(ctx context.Context, req *types.ChatCompletionRequest, requestID string) (<-chan StreamEvent, error) {
	snapshot := g.active.Load()
	normalized := normalizeRequest(req, snapshot.provider)
	normalized.Stream = true

	g.recordRequest(requestID, snapshot.name, normalized, true)

	ctx, cancel := context.WithTimeout(ctx, g.upstreamTimeout)

	chunks, err := snapshot.provider.CompleteStream(ctx, normalized)
	if err != nil {
		cancel()
		g.recordResponse(usage.ResponseLog{
			ID:        uuid.NewString(),
			RequestID: requestID,
			Timestamp: time.Now(),
			Provider:  snapshot.name,
			Model:     normalized.Model,
			Status:    "error",
		})
		g.observe(snapshot.name, "error", 0, nil, 0)
		return nil, err
	}

	translator := newStreamTranslator(g, snapshot, normalized, requestID, req.StreamOptions)

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer cancel()
		translator.run(ctx, chunks, out)
	}()

	return out, nil
}

func (g *Gateway) recordRequest(requestID, providerName string, req *providers.CompletionRequest, stream bool) {
	var last string
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	g.ledger.RecordRequest(usage.RequestLog{
		ID:        requestID,
		Timestamp: time.Now(),
		Provider:  providerName,
		Model:     req.Model,
		Messages:  len(req.Messages),
		Stream:    stream,
		Preview:   preview(last),
	})
}

func (g *Gateway) recordResponse(entry usage.ResponseLog) {
	g.ledger.RecordResponse(entry)
}

func (g *Gateway) observe(provider, status string, duration time.Duration, u *providers.TokenUsage, cost float64) {
	if g.metrics == nil {
		return
	}
	g.metrics.RequestsTotal.WithLabelValues(provider, status).Inc()
	if duration > 0 {
		g.metrics.RequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
	if u != nil {
		g.metrics.TokensTotal.WithLabelValues(provider, "prompt").Add(float64(u.PromptTokens))
		g.metrics.TokensTotal.WithLabelValues(provider, "completion").Add(float64(u.CompletionTokens))
	}
	if cost > 0 {
		g.metrics.CostTotal.WithLabelValues(provider).Add(cost)
	}
}

// encodeResponse re-encodes a normalized completion in OpenAI format.
func encodeResponse(resp *providers.CompletionResponse, model string, u providers.TokenUsage) *types.ChatCompletionResponse {
	created := resp.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	msg := types.ResponseMessage{
		Role:    "assistant",
		Content: resp.Content,
	}
	if len(resp.Thinking) > 0 {
		msg.ReasoningContent = joinThinking(resp.Thinking)
	}

	finish := resp.FinishReason
	if finish == "" {
		finish = providers.FinishReasonStop
	}

	return &types.ChatCompletionResponse{
		ID:      orID(resp.ID),
		Object:  types.ObjectChatCompletion,
		Created: created,
		Model:   model,
		Choices: []types.Choice{
			{
				Index:        0,
				Message:      msg,
				FinishReason: finish,
			},
		},
		Usage: types.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		},
	}
}

func joinThinking(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

// orID returns the upstream response ID, minting one when the backend
// did not supply any.
func orID(id string) string {
	if id != "" {
		return id
	}
	return "chatcmpl-" + uuid.NewString()
}

// preview truncates content for the request/response logs.
func preview(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
