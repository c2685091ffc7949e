// Package observe provides observability primitives for upstream fetches.
//
// It covers OpenTelemetry tracer and meter setup, a small structured Logger
// interface with JSON and zap backends, and a Middleware that wraps every
// upstream call in a span, a latency histogram and a log line. The cache
// engine and the bus facade both log through Logger.
package observe
