package handlers

import (
	"log/slog"
	"net/http"

	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/proxy"
	"proxyllm-hq/relay/pkg/proxy/middleware"
	"proxyllm-hq/relay/pkg/proxy/types"
)

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	gateway *gateway.Gateway
}

// NewChatHandler creates a chat completions handler over the gateway.
func NewChatHandler(g *gateway.Gateway) *ChatHandler {
	return &ChatHandler{gateway: g}
}

// ServeHTTP handles the chat completions endpoint, dispatching to the
// streaming or non-streaming path based on the request's stream flag.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	requestID := middleware.GetRequestID(r.Context())

	if req.Stream {
		h.serveStream(w, r, req, requestID)
		return
	}

	resp, err := h.gateway.HandleCompletion(r.Context(), req, requestID)
	if err != nil {
		slog.ErrorContext(r.Context(), "completion failed",
			"request_id", requestID,
			"error", err,
		)
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	proxy.WriteJSONResponse(w, http.StatusOK, resp)
}

// serveStream relays the translated chunk stream as SSE. Errors before
// the first chunk map to a normal error response; errors after that ride
// inside the stream, since the status line is already gone.
func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, req *types.ChatCompletionRequest, requestID string) {
	events, err := h.gateway.HandleCompletionStream(r.Context(), req, requestID)
	if err != nil {
		slog.ErrorContext(r.Context(), "stream setup failed",
			"request_id", requestID,
			"error", err,
		)
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	sse, err := proxy.NewSSEWriter(w)
	if err != nil {
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	for event := range events {
		if event.Err != nil {
			slog.ErrorContext(r.Context(), "stream failed",
				"request_id", requestID,
				"error", event.Err,
			)
			sse.WriteError(proxy.HandleError(event.Err))
			return
		}

		if err := sse.WriteChunk(event.Chunk); err != nil {
			// Client went away; the translator notices via context
			slog.DebugContext(r.Context(), "stream write failed",
				"request_id", requestID,
				"error", err,
			)
			return
		}
	}

	sse.WriteDone()
}
