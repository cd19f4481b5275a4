// Package middleware provides the HTTP middleware chain for the gateway:
// panic recovery, request logging, request ID propagation, and CORS.
package middleware
