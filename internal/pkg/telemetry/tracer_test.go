package telemetry_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/samirrijal/fieldmap/internal/pkg/telemetry"
)

func TestTracer_NoopBeforeInit(t *testing.T) {
	_, span := telemetry.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span.IsRecording() {
		t.Error("expected a no-op span before a provider is installed")
	}
}

func TestInitTracer(t *testing.T) {
	// The exporter connects lazily, so no collector is needed.
	shutdown, err := telemetry.InitTracer(context.Background(), "fieldmap-test", "127.0.0.1:4317")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer shutdown()

	_, span := telemetry.Tracer("test").Start(context.Background(), "op")
	if !span.IsRecording() {
		t.Error("expected a recording span after init")
	}
	span.End()
}

func TestInjectExtract(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	headers := map[string][]string{}
	telemetry.Inject(ctx, headers)
	span.End()

	if len(headers["Traceparent"]) != 1 {
		t.Fatalf("expected a traceparent header, got %v", headers)
	}

	remote := telemetry.Extract(context.Background(), headers)
	_, child := tp.Tracer("test").Start(remote, "consume")
	child.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[1].Parent().SpanID() != spans[0].SpanContext().SpanID() {
		t.Error("extracted context should parent the consumer span")
	}
}
