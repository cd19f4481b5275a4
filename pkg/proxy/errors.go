package proxy

import (
	"context"
	"errors"
	"fmt"

	"proxyllm-hq/relay/pkg/gateway"
	"proxyllm-hq/relay/pkg/providers"
	"proxyllm-hq/relay/pkg/proxy/types"
)

// RequestError describes a request that failed parsing or validation.
type RequestError struct {
	Message string
	Type    string
	Code    string
	Param   string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts the request error to the wire envelope.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewErrorResponse(e.Message, e.Type, e.Param, e.Code)
}

// HandleError converts any error surfaced by the gateway into an
// OpenAI-compatible error response with the right status code.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var notFound *gateway.ErrProviderNotFound
	if errors.As(err, &notFound) {
		return types.NewInvalidRequestError(
			notFound.Error(),
			"provider",
			types.CodeProviderNotFound,
		)
	}

	var valErr *providers.ValidationError
	if errors.As(err, &valErr) {
		return types.NewValidationError(valErr.Message, valErr.Field)
	}

	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewGatewayTimeoutError(
			fmt.Sprintf("upstream request timed out: %v", timeoutErr),
		)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewGatewayTimeoutError("upstream request timed out")
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return types.NewErrorResponse(
			"upstream authentication failed",
			types.ErrorTypeAuthentication,
			"",
			"authentication_failed",
		)
	}

	var rateLimitErr *providers.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return types.NewErrorResponse(
			rateLimitErr.Error(),
			types.ErrorTypeRateLimitExceeded,
			"",
			"rate_limit_exceeded",
		)
	}

	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return types.NewServerError(
			fmt.Sprintf("failed to parse upstream response: %v", parseErr),
		)
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		return types.NewServerError(
			fmt.Sprintf("upstream error (%s): %s", provErr.Provider, provErr.Message),
		)
	}

	return types.NewServerError("an internal error occurred")
}
