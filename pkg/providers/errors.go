package providers

import (
	"errors"
	"fmt"
)

// ProviderError is the base error for provider failures.
type ProviderError struct {
	Provider   string
	Message    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AuthError indicates the backend rejected the credential.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError indicates the backend throttled the request.
type RateLimitError struct {
	Provider   string
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("provider %s: rate limited (retry after %s)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("provider %s: rate limited", e.Provider)
}

// TimeoutError indicates the backend did not answer within the deadline.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: request timed out", e.Provider)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ParseError indicates the backend returned a response the adapter could
// not decode.
type ParseError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %s: failed to parse response: %s", e.Provider, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StreamError indicates a failure mid-stream, after headers were accepted.
type StreamError struct {
	Provider string
	Message  string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("provider %s: stream error: %s", e.Provider, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ConfigError indicates an invalid provider configuration.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("provider %s: configuration error in %s: %s", e.Provider, e.Field, e.Message)
	}
	return fmt.Sprintf("provider %s: configuration error: %s", e.Provider, e.Message)
}

// ValidationError indicates a malformed completion request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// IsRetryable reports whether a request that failed with err may succeed
// on retry. Auth and configuration failures never do.
func IsRetryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		// 4xx other than 429 is a caller mistake that will not improve.
		if provErr.StatusCode >= 400 && provErr.StatusCode < 500 && provErr.StatusCode != 429 {
			return false
		}
	}
	return true
}
