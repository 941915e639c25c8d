package ctxutil

import (
	"context"
	"regexp"
	"testing"
	"time"
)

func TestNewRunIDFormat(t *testing.T) {
	id := NewRunID(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	if !regexp.MustCompile(`^run_20240506_070809_[0-9a-f]{8}$`).MatchString(id) {
		t.Fatalf("unexpected run id %q", id)
	}
	if NewRunID(time.Now()) == NewRunID(time.Now()) {
		t.Fatalf("run ids must differ")
	}
}

func TestTraceDataRoundTrip(t *testing.T) {
	if GetTraceData(context.Background()) != nil {
		t.Fatalf("expected no trace data")
	}
	ctx := WithTraceData(nil, &TraceData{RunID: "run_x"})
	td := GetTraceData(ctx)
	if td == nil || td.RunID != "run_x" {
		t.Fatalf("unexpected trace data %+v", td)
	}
	if GetTraceData(nil) != nil {
		t.Fatalf("nil ctx must return nil")
	}
}
