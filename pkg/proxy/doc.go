// Package proxy implements the HTTP surface of the gateway: request
// parsing, response and SSE encoding, and the error mapping between
// internal failures and the OpenAI error envelope.
package proxy
