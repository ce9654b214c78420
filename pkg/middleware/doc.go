// Package middleware provides observability hooks for the protocol
// engine: Prometheus metrics and OpenTelemetry tracing. Each
// constructor returns a processor.Hooks value; merge several with
// Hooks.Merge and pass the result through the engine config.
package middleware
