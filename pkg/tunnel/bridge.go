package tunnel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/proxy"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
)

// Bridge is the tunnel's server half. It upgrades inbound connections,
// parses each frame as a chat completion request, runs it through the
// gateway, and writes back exactly one correlated reply per frame.
//
// The wire format is request/response, so streaming completions are
// aggregated into a single response before the reply is written.
type Bridge struct {
	gateway  *gateway.Gateway
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*bridgeClient]struct{}
}

// bridgeClient is one attached tunnel connection. Gorilla connections
// allow a single concurrent writer, so replies serialize on writeMu.
type bridgeClient struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (c *bridgeClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewBridge creates the tunnel server half over the gateway. metrics may
// be nil when telemetry is disabled.
func NewBridge(g *gateway.Gateway, m *metrics.Metrics) *Bridge {
	return &Bridge{
		gateway: g,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge is reached from arbitrary local tooling,
			// same policy as the HTTP CORS surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*bridgeClient]struct{}),
	}
}

// ServeHTTP upgrades the connection and pumps frames until the client
// goes away. Each frame is answered on its own goroutine so a slow
// upstream does not block later frames on the same connection.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("tunnel upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &bridgeClient{id: uuid.NewString(), conn: conn}
	b.register(client)
	defer b.unregister(client)

	slog.Info("tunnel client connected",
		"client_id", client.id,
		"remote", r.RemoteAddr,
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("tunnel read failed", "client_id", client.id, "error", err)
			} else {
				slog.Info("tunnel client disconnected", "client_id", client.id)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Warn("tunnel frame is not valid JSON",
				"client_id", client.id,
				"error", err,
			)
			// Bad frames get an error reply, not a closed connection.
			if err := client.writeJSON(invalidJSONReply{Error: "Invalid JSON format"}); err != nil {
				return
			}
			continue
		}

		go b.handle(r.Context(), client, &req)
	}
}

// handle runs one tunneled request through the gateway and writes the
// correlated reply. The reply always echoes the inbound request id so
// clients can multiplex concurrent requests on one connection.
func (b *Bridge) handle(ctx context.Context, client *bridgeClient, req *Request) {
	requestID := uuid.NewString()

	// The tunnel wire carries whole responses only. Streaming is
	// aggregated gateway-side by completing non-streamed.
	chatReq := req.ChatCompletionRequest
	chatReq.Stream = false
	chatReq.StreamOptions = nil

	reply := Reply{RequestID: req.RequestID}

	resp, err := b.gateway.HandleCompletion(ctx, &chatReq, requestID)
	if err != nil {
		slog.ErrorContext(ctx, "tunneled completion failed",
			"client_id", client.id,
			"request_id", requestID,
			"tunnel_request_id", req.RequestID,
			"error", err,
		)
		errResp := proxy.HandleError(err)
		reply.Error = &errResp.Error
	} else {
		reply.Response = resp
	}

	if err := client.writeJSON(&reply); err != nil {
		slog.Warn("tunnel reply write failed",
			"client_id", client.id,
			"tunnel_request_id", req.RequestID,
			"error", err,
		)
	}
}

func (b *Bridge) register(c *bridgeClient) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil && n > 0 {
		b.metrics.TunnelConnected.Set(1)
	}
}

func (b *Bridge) unregister(c *bridgeClient) {
	b.mu.Lock()
	delete(b.clients, c)
	n := len(b.clients)
	b.mu.Unlock()

	c.conn.Close()

	if b.metrics != nil && n == 0 {
		b.metrics.TunnelConnected.Set(0)
	}
}

// ClientCount reports the number of attached tunnel clients.
func (b *Bridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
