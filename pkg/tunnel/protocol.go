// Package tunnel carries chat completions over a WebSocket bridge for
// hosts that cannot reach the gateway directly. The bridge half runs next
// to the gateway and accepts dial-in clients; the client half runs on the
// restricted host, exposes a local HTTP facade, and relays requests over
// the socket.
package tunnel

import (
	"encoding/json"

	"proxyllm-hq/relay/pkg/proxy/types"
)

// Request is one tunneled chat completion. The client injects RequestID
// and Timestamp before the message leaves the facade; the chat completion
// fields ride inline beside them.
type Request struct {
	// RequestID correlates a reply with its request. Monotonically
	// increasing per client connection.
	RequestID int64 `json:"requestId"`

	// Timestamp is the client-side send time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	types.ChatCompletionRequest
}

// MarshalJSON flattens the envelope fields into the completion body. The
// embedded request marshals itself (Extra included), so the frame cannot
// rely on promoted methods: they would drop the envelope.
func (r Request) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(r.ChatCompletionRequest)
	if err != nil {
		return nil, err
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	merged["requestId"] = r.RequestID
	merged["timestamp"] = r.Timestamp
	return json.Marshal(merged)
}

// UnmarshalJSON splits a frame back into the envelope and the completion
// body, keeping the envelope keys out of the body's Extra set.
func (r *Request) UnmarshalJSON(data []byte) error {
	var envelope struct {
		RequestID int64 `json:"requestId"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &r.ChatCompletionRequest); err != nil {
		return err
	}

	r.RequestID = envelope.RequestID
	r.Timestamp = envelope.Timestamp
	delete(r.Extra, "requestId")
	delete(r.Extra, "timestamp")
	if len(r.Extra) == 0 {
		r.Extra = nil
	}
	return nil
}

// Reply is the bridge's answer to one Request. RequestID always echoes
// the request, so clients can correlate replies however the bridge
// interleaves them.
type Reply struct {
	// RequestID echoes the request's identifier.
	RequestID int64 `json:"requestId"`

	// Response is the aggregated completion on success.
	Response *types.ChatCompletionResponse `json:"response,omitempty"`

	// Error carries failure details instead of a response.
	Error *types.ErrorDetail `json:"error,omitempty"`
}

// invalidJSONReply is sent verbatim for frames that do not parse. There
// is no request ID to echo, so the error stands alone.
type invalidJSONReply struct {
	Error string `json:"error"`
}
