package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"proxyllm-hq/relay/pkg/providers"
)

// StreamReader reads Server-Sent Events (SSE) from an OpenAI-compatible
// streaming API.
type StreamReader struct {
	provider *providers.HTTPProvider
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool
}

// NewStreamReader opens the SSE stream and wraps it in a line scanner.
func NewStreamReader(ctx context.Context, provider *providers.HTTPProvider, url string, req *Request, headers map[string]string) (*StreamReader, error) {
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

	return &StreamReader{
		provider: provider,
		resp:     resp.Body,
		scanner:  scanner,
	}, nil
}

// Read returns the next chunk from the stream.
// Returns nil, io.EOF when the stream ends normally.
func (s *StreamReader) Read(ctx context.Context) (*providers.StreamChunk, error) {
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
		if line == "" {
			continue
		}

		// Skip non-data lines (comments, event types)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var wire StreamResponse
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			return nil, &providers.ParseError{
				Provider: s.provider.Name(),
				Message:  "failed to parse stream chunk",
				Err:      err,
			}
		}

		chunk, err := TransformStreamChunk(&wire)
		if err != nil {
			return nil, &providers.ParseError{
				Provider: s.provider.Name(),
				Message:  err.Error(),
			}
		}

		return chunk, nil
	}
}

// Close closes the stream and releases resources.
func (s *StreamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
