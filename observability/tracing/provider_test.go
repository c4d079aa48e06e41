package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected default endpoint localhost:4318, got %s", cfg.Endpoint)
	}
	if cfg.ServiceName != "appsyncctl" {
		t.Errorf("expected default service name appsyncctl, got %s", cfg.ServiceName)
	}
	if !cfg.Insecure {
		t.Error("expected default insecure to be true")
	}
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown of nil provider should not error: %v", err)
	}
	if (&Provider{}).Shutdown(context.Background()) != nil {
		t.Fatal("shutdown of empty provider should not error")
	}
}

func newTestTracer(t *testing.T) (*PipelineTracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	p := &Provider{tp: tp, tracer: tp.Tracer("test")}
	return p.PipelineTracer(), exporter
}

func TestPipelineTracer_RunAndStage(t *testing.T) {
	pt, exporter := newTestTracer(t)

	ctx, run := pt.StartRun(context.Background(), "deploy", "blog", "run-1")
	_, stage := pt.StartStage(ctx, "schema")
	pt.End(stage, nil)
	pt.End(run, nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "appsync.stage.schema" {
		t.Errorf("first span = %q, want appsync.stage.schema", spans[0].Name)
	}
	if spans[1].Name != "appsync.deploy" {
		t.Errorf("second span = %q, want appsync.deploy", spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("stage span is not a child of the run span")
	}

	found := false
	for _, attr := range spans[1].Attributes {
		if string(attr.Key) == "appsync.api.name" && attr.Value.AsString() == "blog" {
			found = true
		}
	}
	if !found {
		t.Error("expected appsync.api.name attribute on run span")
	}
}

func TestPipelineTracer_EndWithError(t *testing.T) {
	pt, exporter := newTestTracer(t)

	_, span := pt.StartStage(context.Background(), "resolvers")
	pt.End(span, errors.New("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}
