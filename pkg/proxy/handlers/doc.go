// Package handlers implements the gateway's HTTP endpoints: the OpenAI
// chat completions surface and the management endpoints for provider
// switching, stats, and logs.
package handlers
