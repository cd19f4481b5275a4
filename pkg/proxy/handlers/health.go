package handlers

import (
	"net/http"
	"time"

	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/proxy"
	"proxyllm-hq/relay/pkg/proxy/middleware"
	"proxyllm-hq/relay/pkg/proxy/types"
)

// HealthHandler serves GET /health and the informational root endpoint.
type HealthHandler struct {
	gateway   *gateway.Gateway
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(g *gateway.Gateway, version string) *HealthHandler {
	return &HealthHandler{
		gateway:   g,
		version:   version,
		startTime: time.Now(),
	}
}

// Health reports process liveness. Provider reachability is deliberately
// not probed here: the gateway is healthy whenever it can serve traffic,
// whatever the backends are doing.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"version":         h.version,
		"uptime_seconds":  int(time.Since(h.startTime).Seconds()),
		"active_provider": h.gateway.ActiveProvider(),
	})
}

// Test fires a tiny completion at the active provider so an operator
// can verify end-to-end connectivity without crafting a request. The
// outcome rides in the body; the endpoint itself always answers 200.
func (h *HealthHandler) Test(w http.ResponseWriter, r *http.Request) {
	maxTokens := 5
	req := &types.ChatCompletionRequest{
		Messages:  []types.Message{{Role: "user", Content: "test"}},
		MaxTokens: &maxTokens,
	}

	resp, err := h.gateway.HandleCompletion(r.Context(), req, middleware.GetRequestID(r.Context()))
	if err != nil {
		proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"response": content,
	})
}

// Root serves GET / with a short service description.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"service": "relay",
		"version": h.version,
		"endpoints": []string{
			"/v1/chat/completions",
			"/health",
			"/test",
			"/providers",
			"/switch-provider/{name}",
			"/stats",
			"/logs/requests",
			"/logs/responses",
			"/logs/all",
		},
	})
}
