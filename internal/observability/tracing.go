package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
)

const tracerName = "github.com/yungbote/dealgraph-backend"

// StartStage opens a span for one pipeline stage. The run id from the
// context trace data is attached when present.
func StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx = ctxutil.Default(ctx)
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.RunID != "" {
			attrs = append(attrs, attribute.String("dealgraph.run_id", td.RunID))
		}
		if td.JobID != "" {
			attrs = append(attrs, attribute.String("dealgraph.job_id", td.JobID))
		}
	}
	return otel.Tracer(tracerName).Start(ctx, "dealgraph."+stage, trace.WithAttributes(attrs...))
}

// EndStage records err on span and ends it.
func EndStage(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
