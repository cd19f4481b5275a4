package tunnel

import (
	"errors"
	"log/slog"
	"net/http"

	"proxyllm-hq/relay/pkg/proxy"
	"proxyllm-hq/relay/pkg/proxy/types"
)

// Facade is the OpenAI-compatible HTTP listener fronting the tunnel
// client. Callers on the restricted host talk normal HTTP to it; the
// facade relays each request over the socket and unwraps the correlated
// reply.
type Facade struct {
	client *Client
}

// NewFacade creates the HTTP facade over a tunnel client.
func NewFacade(client *Client) *Facade {
	return &Facade{client: client}
}

// Handler returns the facade's route table.
func (f *Facade) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", f.chatCompletions)
	mux.HandleFunc("/health", f.health)
	mux.HandleFunc("/stats", f.stats)
	return mux
}

// chatCompletions relays one completion over the tunnel. The tunnel wire
// is request/response, so streaming is aggregated bridge-side and the
// facade always answers with a whole JSON body.
func (f *Facade) chatCompletions(w http.ResponseWriter, r *http.Request) {
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
	req.Stream = false
	req.StreamOptions = nil

	reply, err := f.client.Forward(r.Context(), req)
	if err != nil {
		proxy.WriteErrorResponse(w, f.errorResponse(err))
		return
	}

	if reply.Error != nil {
		proxy.WriteErrorResponse(w, &types.ErrorResponse{Error: *reply.Error})
		return
	}

	proxy.WriteJSONResponse(w, http.StatusOK, reply.Response)
}

func (f *Facade) errorResponse(err error) *types.ErrorResponse {
	if errors.Is(err, ErrTunnelClosed) {
		return types.NewServiceUnavailableError(
			"tunnel is not connected to the bridge",
			types.CodeTunnelDisconnected,
		)
	}

	var timeoutErr *RequestTimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewGatewayTimeoutError(timeoutErr.Error())
	}

	slog.Error("tunnel forward failed", "error", err)
	return types.NewServerError("tunnel request failed")
}

// health reports facade liveness and tunnel connectivity. The facade is
// alive even while the tunnel is down; connectivity rides alongside so
// monitors can tell the two apart.
func (f *Facade) health(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"websocket_connected": f.client.Connected(),
	})
}

// stats reports the tunnel client's internals.
func (f *Facade) stats(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSONResponse(w, http.StatusOK, f.client.Stats())
}
