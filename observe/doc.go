// Package observe provides observability primitives for memoized calls.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// metrics and tracing, and a Middleware that records the outcome of each
// cached call. The cache package uses no-op implementations unless a caller
// wires real ones in.
package observe
