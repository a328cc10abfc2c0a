package observability_test

import (
	"context"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/observability"
)

func TestInitTracingNoneInstallsNoop(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), config.Tracing{Exporter: "none"}, "mediaflow-test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ctx, span := observability.StartSpan(context.Background(), "noop")
	if ctx == nil || span == nil {
		t.Fatal("expected span and context")
	}
	if span.SpanContext().IsValid() {
		t.Fatal("expected no-op span to carry an invalid span context")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingStdoutRecordsSpans(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), config.Tracing{Exporter: "stdout", SampleRatio: 1}, "mediaflow-test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_ = shutdown(context.Background())
		_, _ = observability.InitTracing(context.Background(), config.Tracing{Exporter: "none"}, "mediaflow-test")
	})
	_, span := observability.StartSpan(context.Background(), "sampled")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recorded span")
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := observability.InitTracing(context.Background(), config.Tracing{Exporter: "zipkin"}, "mediaflow-test"); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
