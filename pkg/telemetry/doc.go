// Package telemetry groups the gateway's observability concerns.
//
//   - logging: process-wide slog setup with credential redaction
//   - metrics: Prometheus collectors and the scrape endpoint
//   - health: liveness and readiness probes
package telemetry
