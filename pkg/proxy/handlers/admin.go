package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/proxy"
	"proxyllm-hq/relay/pkg/proxy/types"
	"proxyllm-hq/relay/pkg/usage"
)

// MaxCombinedLogEntries caps the merged /logs/all view.
const MaxCombinedLogEntries = 50

// AdminHandler serves the management surface: provider listing and
// switching, usage stats, and the request/response logs.
type AdminHandler struct {
	gateway *gateway.Gateway
}

// NewAdminHandler creates the admin handler over the gateway.
func NewAdminHandler(g *gateway.Gateway) *AdminHandler {
	return &AdminHandler{gateway: g}
}

// Providers serves GET /providers.
func (h *AdminHandler) Providers(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"providers":       h.gateway.Providers(),
		"active_provider": h.gateway.ActiveProvider(),
	})
}

// SwitchProvider serves POST /switch-provider/{name}.
func (h *AdminHandler) SwitchProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/switch-provider/")
	name = strings.Trim(name, "/")
	if name == "" {
		proxy.WriteErrorResponse(w, types.NewInvalidRequestError(
			"provider name is required",
			"provider",
			types.CodeInvalidValue,
		))
		return
	}

	if err := h.gateway.SwitchProvider(name); err != nil {
		proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	proxy.WriteJSONResponse(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"active_provider": name,
	})
}

// Stats serves GET /stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	totals := h.gateway.Ledger().Totals()
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"active_provider":   h.gateway.ActiveProvider(),
		"requests":          totals.Requests,
		"prompt_tokens":     totals.PromptTokens,
		"completion_tokens": totals.CompletionTokens,
		"total_cost":        totals.TotalCost,
	})
}

// RequestLogs serves GET /logs/requests.
func (h *AdminHandler) RequestLogs(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"requests": h.gateway.Ledger().Requests(),
	})
}

// ResponseLogs serves GET /logs/responses.
func (h *AdminHandler) ResponseLogs(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"responses": h.gateway.Ledger().Responses(),
	})
}

// combinedLogEntry is one row of the merged /logs/all view.
type combinedLogEntry struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Request  *usage.RequestLog  `json:"request,omitempty"`
	Response *usage.ResponseLog `json:"response,omitempty"`
}

// AllLogs serves GET /logs/all: both rings merged, newest first, capped
// at MaxCombinedLogEntries.
func (h *AdminHandler) AllLogs(w http.ResponseWriter, r *http.Request) {
	requests := h.gateway.Ledger().Requests()
	responses := h.gateway.Ledger().Responses()

	combined := make([]combinedLogEntry, 0, len(requests)+len(responses))
	for i := range requests {
		combined = append(combined, combinedLogEntry{
			Kind:      "request",
			Timestamp: requests[i].Timestamp,
			Request:   &requests[i],
		})
	}
	for i := range responses {
		combined = append(combined, combinedLogEntry{
			Kind:      "response",
			Timestamp: responses[i].Timestamp,
			Response:  &responses[i],
		})
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp.After(combined[j].Timestamp)
	})

	if len(combined) > MaxCombinedLogEntries {
		combined = combined[:MaxCombinedLogEntries]
	}

	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"logs": combined,
	})
}
