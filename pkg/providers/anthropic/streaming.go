package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"proxyllm-hq/relay/pkg/providers"
)

// streamReader reads the Anthropic SSE stream. Unlike the OpenAI format,
// each event carries a type and the stream ends with message_stop rather
// than a [DONE] sentinel.
type streamReader struct {
	provider *providers.HTTPProvider
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	state    streamState
	closed   bool
}

func newStreamReader(ctx context.Context, provider *providers.HTTPProvider, url string, req *Request, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := provider.DoRequest(ctx, "POST", url, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &streamReader{
		provider: provider,
		resp:     resp.Body,
		scanner:  scanner,
	}, nil
}

// Read returns the next client-visible chunk from the stream, skipping
// events that carry no payload. Returns nil, io.EOF at message_stop or
// when the connection closes.
func (s *streamReader) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &providers.StreamError{
					Provider: s.provider.Name(),
					Message:  "failed to read stream",
					Err:      err,
				}
			}
			return nil, io.EOF
		}

		line := s.scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			// "event: ..." lines duplicate the type field inside the data
			// payload, so only data lines matter.
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &providers.ParseError{
				Provider: s.provider.Name(),
				Message:  "failed to parse stream event",
				Err:      err,
			}
		}

		if event.Type == "message_stop" {
			return nil, io.EOF
		}

		chunk, err := transformStreamEvent(&event, &s.state)
		if err != nil {
			return nil, &providers.StreamError{
				Provider: s.provider.Name(),
				Message:  err.Error(),
			}
		}
		if chunk == nil {
			continue
		}

		return chunk, nil
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
