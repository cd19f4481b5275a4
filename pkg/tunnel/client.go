package tunnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"proxyllm-hq/relay/pkg/config"
	"proxyllm-hq/relay/pkg/proxy/types"
	"proxyllm-hq/relay/pkg/telemetry/metrics"
)

// ErrTunnelClosed reports that the tunnel client has shut down or given
// up reconnecting. Callers map it to HTTP 503.
var ErrTunnelClosed = errors.New("tunnel client is not connected")

// RequestTimeoutError reports that a tunneled request's deadline elapsed
// before a correlated reply arrived.
type RequestTimeoutError struct {
	RequestID int64
	Timeout   time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("tunnel request %d timed out after %s", e.RequestID, e.Timeout)
}

// Client is the tunnel's dialer half. It keeps one persistent connection
// to the bridge, correlates replies to in-flight requests by id, queues
// outbound frames while the socket is down, and reconnects with a fixed
// interval up to a bounded attempt count.
type Client struct {
	cfg     config.TunnelClientConfig
	metrics *metrics.Metrics
	dialer  *websocket.Dialer

	mu     sync.Mutex // guards conn, queue, closed
	conn   *websocket.Conn
	queue  [][]byte
	closed bool

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan *Reply

	nextID     atomic.Int64
	reconnects atomic.Int64
	connected  atomic.Bool

	cron *cron.Cron
}

// NewClient creates a tunnel client for the given bridge URL. metrics
// may be nil.
func NewClient(cfg config.TunnelClientConfig, m *metrics.Metrics) *Client {
	return &Client{
		cfg:     cfg,
		metrics: m,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		pending: make(map[int64]chan *Reply),
	}
}

// Run connects to the bridge and keeps the connection alive until ctx is
// cancelled or the reconnect budget is exhausted. It blocks.
func (c *Client) Run(ctx context.Context) error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.cfg.HealthCheckSchedule, c.healthCheck); err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", c.cfg.HealthCheckSchedule, err)
	}
	c.cron.Start()
	defer c.cron.Stop()
	defer c.shutdown()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempts++
			c.reconnects.Add(1)
			if c.metrics != nil {
				c.metrics.TunnelReconnects.Inc()
			}

			if attempts >= c.cfg.MaxReconnectAttempts {
				slog.Error("tunnel reconnect budget exhausted",
					"url", c.cfg.URL,
					"attempts", attempts,
				)
				return fmt.Errorf("connecting to bridge %s: %w", c.cfg.URL, err)
			}

			slog.Warn("tunnel connect failed, retrying",
				"url", c.cfg.URL,
				"attempt", attempts,
				"retry_in", c.cfg.ReconnectInterval,
				"error", err,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ReconnectInterval):
			}
			continue
		}

		attempts = 0
		slog.Info("tunnel connected", "url", c.cfg.URL)

		c.attach(conn)
		c.flushQueue()
		c.readLoop(conn)
		c.detach(conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("tunnel connection lost, reconnecting", "url", c.cfg.URL)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// Forward sends one chat completion over the tunnel and waits for the
// correlated reply or the request deadline, whichever comes first. The
// pending entry is removed exactly once on either path. While the socket
// is down, frames queue and flush in order on reconnect; queued requests
// still expire by their deadline.
func (c *Client) Forward(ctx context.Context, req *types.ChatCompletionRequest) (*Reply, error) {
	id := c.nextID.Add(1)

	frame := Request{
		RequestID:             id,
		Timestamp:             time.Now().UnixMilli(),
		ChatCompletionRequest: *req,
	}

	payload, err := json.Marshal(&frame)
	if err != nil {
		return nil, fmt.Errorf("encoding tunnel request: %w", err)
	}

	ch := make(chan *Reply, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.send(payload); err != nil {
		c.drop(id)
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply == nil {
			return nil, ErrTunnelClosed
		}
		return reply, nil
	case <-timer.C:
		c.drop(id)
		return nil, &RequestTimeoutError{RequestID: id, Timeout: c.cfg.RequestTimeout}
	case <-ctx.Done():
		c.drop(id)
		return nil, ctx.Err()
	}
}

// Connected reports whether the socket is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Stats is a point-in-time snapshot of the client's internals, served by
// the facade's /stats endpoint.
type Stats struct {
	Connected         bool  `json:"websocket_connected"`
	PendingRequests   int   `json:"pending_requests"`
	QueueSize         int   `json:"queue_size"`
	ReconnectAttempts int64 `json:"reconnect_attempts"`
}

// Stats reports the current connection and queue state.
func (c *Client) Stats() Stats {
	c.pendingMu.Lock()
	pending := len(c.pending)
	c.pendingMu.Unlock()

	c.mu.Lock()
	queued := len(c.queue)
	c.mu.Unlock()

	return Stats{
		Connected:         c.connected.Load(),
		PendingRequests:   pending,
		QueueSize:         queued,
		ReconnectAttempts: c.reconnects.Load(),
	}
}

// send transmits a frame, or queues it when the socket is down. Closed
// clients reject instead of queueing.
func (c *Client) send(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTunnelClosed
	}
	conn := c.conn
	if conn == nil {
		c.queue = append(c.queue, payload)
		n := len(c.queue)
		c.mu.Unlock()
		slog.Debug("tunnel offline, request queued", "queue_size", n)
		return nil
	}
	c.mu.Unlock()

	return c.write(conn, payload)
}

func (c *Client) write(conn *websocket.Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// flushQueue transmits everything queued while offline, preserving the
// original send order.
func (c *Client) flushQueue() {
	c.mu.Lock()
	queued := c.queue
	c.queue = nil
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || len(queued) == 0 {
		return
	}

	slog.Info("flushing tunnel queue", "queued", len(queued))
	for _, payload := range queued {
		if err := c.write(conn, payload); err != nil {
			slog.Warn("tunnel queue flush failed", "error", err)
			return
		}
	}
}

// readLoop dispatches replies to their pending entries until the
// connection drops. Unmatched ids were already resolved or expired and
// are dropped.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var reply Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			slog.Warn("tunnel reply is not valid JSON", "error", err)
			continue
		}

		c.resolve(&reply)
	}
}

// resolve completes the pending entry matching the reply. Delete under
// lock guarantees the entry completes exactly once even if the deadline
// races the reply.
func (c *Client) resolve(reply *Reply) {
	c.pendingMu.Lock()
	ch, ok := c.pending[reply.RequestID]
	if ok {
		delete(c.pending, reply.RequestID)
	}
	c.pendingMu.Unlock()

	if !ok {
		slog.Debug("dropping unmatched tunnel reply", "request_id", reply.RequestID)
		return
	}
	ch <- reply
}

// drop removes a pending entry without resolving it.
func (c *Client) drop(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	c.connected.Store(false)
	conn.Close()
}

// healthCheck pings the bridge on the configured cron schedule. A failed
// ping closes the socket so the read loop returns and the reconnect loop
// takes over.
func (c *Client) healthCheck() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		slog.Debug("tunnel health check skipped, not connected")
		return
	}

	c.writeMu.Lock()
	err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
	c.writeMu.Unlock()

	if err != nil {
		slog.Warn("tunnel health check failed", "error", err)
		conn.Close()
	}
}

// shutdown marks the client closed, drops the socket, and fails every
// pending request so callers see 503 instead of hanging to deadline.
func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.queue = nil
	c.mu.Unlock()
	c.connected.Store(false)

	if conn != nil {
		conn.Close()
	}

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- nil
	}
	c.pendingMu.Unlock()
}
