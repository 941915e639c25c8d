package ctxutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type traceDataKey struct{}

// TraceData carries the identifiers stamped on every log line and span of a run.
type TraceData struct {
	TraceID string
	RunID   string
	JobID   string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// NewRunID returns run_YYYYMMDD_HHMMSS_<8 hex>.
func NewRunID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("run_%s_%s", now.UTC().Format("20060102_150405"), hex[:8])
}
