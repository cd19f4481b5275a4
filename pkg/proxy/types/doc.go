// Package types defines the OpenAI-compatible wire format the gateway
// speaks to its clients: chat completion requests, responses, streaming
// chunks, and the error envelope.
package types
