// Package observability wires OpenTelemetry tracing for the daemon.
//
// InitTracing installs a global tracer provider selected by the [tracing]
// config section; StartSpan is the single entry point pipeline and HTTP code
// use to open spans.
package observability
