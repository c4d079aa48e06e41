package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PipelineTracer opens spans around reconciliation runs and their stages.
type PipelineTracer struct {
	tracer trace.Tracer
}

// NewPipelineTracer creates a PipelineTracer. If tracer is nil, the global
// tracer provider is used.
func NewPipelineTracer(tracer trace.Tracer) *PipelineTracer {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer("appsyncctl.pipeline")
	}
	return &PipelineTracer{tracer: tracer}
}

// StartRun begins the root span of one deploy or remove run.
func (p *PipelineTracer) StartRun(ctx context.Context, operation, apiName, runID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "appsync."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("appsync.api.name", apiName),
			attribute.String("appsync.run.id", runID),
		),
	)
}

// StartStage begins a child span for one pipeline stage.
func (p *PipelineTracer) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "appsync.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("appsync.stage", stage)),
	)
}

// End records err on span, if any, sets the span status and ends it.
func (p *PipelineTracer) End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
