package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/proxy/types"
	"proxyllm-hq/relay/pkg/usage"
)

// StreamEvent is one element of a translated stream: an OpenAI-format
// chunk, or a terminal error.
type StreamEvent struct {
	Chunk *types.ChatCompletionStreamChunk
	Err   error
}

// streamTranslator re-encodes a provider's chunk stream into OpenAI
// chat.completion.chunk events and settles the usage ledger exactly once
// when the stream ends, however it ends.
//
// Completion tokens are recomputed from the accumulated text after every
// delta, so the final accounting never depends on the backend reporting
// usage at all.
type streamTranslator struct {
	gateway  *Gateway
	snapshot *activeProvider
	req      *providers.CompletionRequest

	requestID string
	id        string
	model     string
	created   int64

	includeUsage bool // caller asked for usage accounting
	chunkUsage   bool // running snapshot on every chunk; off for backends whose wire format forbids it
	trustUsage   bool // backend-reported figures may be forwarded

	start        time.Time
	text         strings.Builder
	backendUsage *providers.TokenUsage
	finished     bool
	sentRole     bool
}

func newStreamTranslator(g *Gateway, snapshot *activeProvider, req *providers.CompletionRequest, requestID string, opts *types.StreamOptions) *streamTranslator {
	includeUsage := opts != nil && opts.IncludeUsage
	supports := snapshot.provider.SupportsStreamingUsage()

	return &streamTranslator{
		gateway:      g,
		snapshot:     snapshot,
		req:          req,
		requestID:    requestID,
		id:           "chatcmpl-" + uuid.NewString(),
		model:        req.Model,
		created:      time.Now().Unix(),
		includeUsage: includeUsage,
		chunkUsage:   includeUsage && supports,
		trustUsage:   supports,
		start:        time.Now(),
	}
}

// run drives the translation until the provider stream closes or the
// context is cancelled. The ledger entry is written from a defer so every
// exit path settles it, and settles it once.
func (t *streamTranslator) run(ctx context.Context, in <-chan *providers.StreamChunk, out chan<- StreamEvent) {
	status := "error"
	defer func() {
		t.finalize(status)
	}()

	for {
		select {
		case <-ctx.Done():
			t.surfaceTimeout(ctx, out)
			return

		case chunk, ok := <-in:
			if !ok {
				// A close after the context died is the adapter tearing
				// down, not a completed stream; never dress it up as one.
				if ctx.Err() != nil {
					t.surfaceTimeout(ctx, out)
					return
				}
				// Backend closed; synthesize the finish chunk if the
				// stream never carried one.
				if !t.finished {
					if !t.emit(ctx, out, t.finishChunk(providers.FinishReasonStop)) {
						return
					}
					t.finished = true
				}
				if t.includeUsage {
					if !t.emit(ctx, out, t.usageChunk()) {
						return
					}
				}
				status = "ok"
				return
			}

			if chunk.Error != nil {
				select {
				case out <- StreamEvent{Err: chunk.Error}:
				case <-ctx.Done():
				}
				return
			}

			if chunk.ID != "" {
				t.id = chunk.ID
			}
			if chunk.Usage != nil {
				t.backendUsage = chunk.Usage
			}

			if chunk.Delta != "" || chunk.Thinking != "" {
				t.text.WriteString(chunk.Delta)
				if !t.emit(ctx, out, t.deltaChunk(chunk)) {
					return
				}
			}

			if chunk.FinishReason != "" && !t.finished {
				if !t.emit(ctx, out, t.finishChunk(chunk.FinishReason)) {
					return
				}
				t.finished = true

				if !t.includeUsage {
					status = "ok"
					return
				}
				// Trusted backends report usage in a trailing chunk
				// after the finish; keep draining until it arrives or
				// the stream closes.
				if t.trustUsage && t.backendUsage == nil {
					continue
				}
				if !t.emit(ctx, out, t.usageChunk()) {
					return
				}
				status = "ok"
				return
			}

			// Drained trailing usage after the finish chunk
			if t.finished && t.backendUsage != nil {
				if !t.emit(ctx, out, t.usageChunk()) {
					return
				}
				status = "ok"
				return
			}
		}
	}
}

// surfaceTimeout reports an upstream deadline breach as a terminal error
// event. Client cancellation stays silent: the consumer is gone, and the
// ledger records the partial accumulation either way.
func (t *streamTranslator) surfaceTimeout(ctx context.Context, out chan<- StreamEvent) {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return
	}
	select {
	case out <- StreamEvent{Err: context.DeadlineExceeded}:
	case <-time.After(time.Second):
	}
}

func (t *streamTranslator) emit(ctx context.Context, out chan<- StreamEvent, chunk *types.ChatCompletionStreamChunk) bool {
	select {
	case out <- StreamEvent{Chunk: chunk}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *streamTranslator) deltaChunk(chunk *providers.StreamChunk) *types.ChatCompletionStreamChunk {
	delta := types.Delta{Content: chunk.Delta}
	if chunk.Thinking != "" {
		thinking := chunk.Thinking
		delta.ReasoningContent = &thinking
	}
	if !t.sentRole {
		delta.Role = "assistant"
		t.sentRole = true
	}

	out := &types.ChatCompletionStreamChunk{
		ID:      t.id,
		Object:  types.ObjectChatCompletionChunk,
		Created: t.created,
		Model:   t.model,
		Choices: []types.StreamChoice{
			{Index: 0, Delta: delta},
		},
	}
	if t.chunkUsage {
		out.Usage = t.wireUsage(t.estimatedUsage())
	}
	return out
}

func (t *streamTranslator) finishChunk(reason string) *types.ChatCompletionStreamChunk {
	out := &types.ChatCompletionStreamChunk{
		ID:      t.id,
		Object:  types.ObjectChatCompletionChunk,
		Created: t.created,
		Model:   t.model,
		Choices: []types.StreamChoice{
			{Index: 0, Delta: types.Delta{}, FinishReason: &reason},
		},
	}
	if t.chunkUsage {
		out.Usage = t.wireUsage(t.estimatedUsage())
	}
	return out
}

// usageChunk builds the trailing usage-only chunk. Backend-reported usage
// is used only when the adapter vouches for it; otherwise the locally
// recomputed counts stand in, so clients of every backend see the same
// shape.
func (t *streamTranslator) usageChunk() *types.ChatCompletionStreamChunk {
	return &types.ChatCompletionStreamChunk{
		ID:      t.id,
		Object:  types.ObjectChatCompletionChunk,
		Created: t.created,
		Model:   t.model,
		Choices: []types.StreamChoice{},
		Usage:   t.wireUsage(t.currentUsage()),
	}
}

// wireUsage renders a usage snapshot in the client-facing shape, with the
// prompt-cache accounting fields some clients read. The gateway never
// populates a prompt cache, so cached_tokens is always zero and the whole
// prompt counts as a miss.
func (t *streamTranslator) wireUsage(u providers.TokenUsage) *types.Usage {
	return &types.Usage{
		PromptTokens:          u.PromptTokens,
		CompletionTokens:      u.CompletionTokens,
		TotalTokens:           u.TotalTokens,
		PromptTokensDetails:   &types.PromptTokensDetails{CachedTokens: 0},
		PromptCacheMissTokens: u.PromptTokens,
	}
}

// estimatedUsage is the running local estimate: prompt tokens from the
// request, completion tokens recomputed from the text accumulated so far.
func (t *streamTranslator) estimatedUsage() providers.TokenUsage {
	var u providers.TokenUsage
	if est := t.gateway.estimator; est != nil {
		u.PromptTokens = est.EstimateMessages(t.req.Messages, t.model)
		u.CompletionTokens = est.EstimateText(t.text.String(), t.model)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// currentUsage resolves the stream's final token accounting.
func (t *streamTranslator) currentUsage() providers.TokenUsage {
	if t.trustUsage && t.backendUsage != nil {
		return *t.backendUsage
	}
	return t.estimatedUsage()
}

// finalize settles the ledger entry for this stream. Called exactly once
// from run's defer.
func (t *streamTranslator) finalize(status string) {
	u := t.currentUsage()

	var cost float64
	if t.gateway.calc != nil && status == "ok" {
		cost = t.gateway.calc.EstimateCost(t.snapshot.name, t.model, u.PromptTokens, u.CompletionTokens, false)
	}

	duration := time.Since(t.start)

	t.gateway.recordResponse(usage.ResponseLog{
		ID:               t.id,
		RequestID:        t.requestID,
		Timestamp:        time.Now(),
		Provider:         t.snapshot.name,
		Model:            t.model,
		Status:           status,
		Duration:         duration,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		Cost:             cost,
		Preview:          preview(t.text.String()),
	})
	t.gateway.observe(t.snapshot.name, status, duration, &u, cost)
}
