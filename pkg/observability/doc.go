// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry tracing and graceful shutdown helpers for the
// gatekeeper service.
//
// The Logger is a thin wrapper over stdlib slog with JSON output. Metrics are
// registered on an explicit *prometheus.Registry so tests can use their own.
// Health probes check the database and the optional Redis cache backend.
package observability
