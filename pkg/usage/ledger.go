// Package usage keeps the in-memory request/response ledger and running
// usage totals the stats and logs endpoints report from.
package usage

import (
	"sync"
	"time"
)

// MaxLogEntries bounds each ring buffer. The oldest entry is evicted
// first; memory stays flat no matter how long the process runs.
const MaxLogEntries = 100

// RequestLog is one recorded inbound request.
type RequestLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Messages  int       `json:"messages"`
	Stream    bool      `json:"stream"`
	Preview   string    `json:"preview,omitempty"`
}

// ResponseLog is one recorded outbound response.
type ResponseLog struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"request_id"`
	Timestamp        time.Time     `json:"timestamp"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	Status           string        `json:"status"`
	Duration         time.Duration `json:"duration"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Cost             float64       `json:"cost"`
	Preview          string        `json:"preview,omitempty"`
}

// Totals is a snapshot of the running counters.
type Totals struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalCost        float64 `json:"total_cost"`
}

// Ledger records requests and responses into two bounded rings and keeps
// running totals. Totals only ever grow; evicting a log entry never
// subtracts what it once added.
//
// Safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	requests  ring[RequestLog]
	responses ring[ResponseLog]
	totals    Totals
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		requests:  newRing[RequestLog](MaxLogEntries),
		responses: newRing[ResponseLog](MaxLogEntries),
	}
}

// RecordRequest appends a request entry, evicting the oldest when full.
func (l *Ledger) RecordRequest(entry RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requests.push(entry)
	l.totals.Requests++
}

// RecordResponse appends a response entry and folds its usage into the
// running totals.
func (l *Ledger) RecordResponse(entry ResponseLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.responses.push(entry)
	l.totals.PromptTokens += int64(entry.PromptTokens)
	l.totals.CompletionTokens += int64(entry.CompletionTokens)
	l.totals.TotalCost += entry.Cost
}

// Requests returns the retained request entries, oldest first.
func (l *Ledger) Requests() []RequestLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.requests.items()
}

// Responses returns the retained response entries, oldest first.
func (l *Ledger) Responses() []ResponseLog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.responses.items()
}

// Totals returns a snapshot of the running counters.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals
}

// ring is a fixed-capacity FIFO buffer.
type ring[T any] struct {
	buf   []T
	head  int
	count int
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = item
		r.count++
		return
	}
	// Full: overwrite the oldest
	r.buf[r.head] = item
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring[T]) items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
