package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type call struct {
	jobType string
	runID   string
	payload map[string]any
}

type fakeRunner struct {
	calls  []call
	failOn string
}

func (f *fakeRunner) Run(_ context.Context, jobType, runID string, payload map[string]any) (*types.JobRun, error) {
	f.calls = append(f.calls, call{jobType: jobType, runID: runID, payload: payload})
	job := &types.JobRun{JobType: jobType, RunID: runID, Status: types.JobStatusSucceeded}
	if jobType == f.failOn {
		job.Status = types.JobStatusFailed
		return job, errors.New("boom")
	}
	return job, nil
}

func TestDefaultChainOrder(t *testing.T) {
	got := []string{}
	for _, st := range DefaultChain("/data/deals.xlsx") {
		got = append(got, st.JobType)
	}
	want := "ingest,transform,extract,link,resolve,quarantine_sweep,rebuild_edges,generate_docs,generate_embeddings"
	if strings.Join(got, ",") != want {
		t.Fatalf("chain=%v", got)
	}
	if first := DefaultChain("  ")[0].JobType; first != "transform" {
		t.Fatalf("chain without path starts with %q", first)
	}
}

func TestRunChainSharesRunID(t *testing.T) {
	r := &fakeRunner{}
	s := New(logger.Nop(), r, DefaultChain("/data/deals.xlsx"))
	res, err := s.RunChain(context.Background())
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if len(res.Jobs) != 9 || len(r.calls) != 9 {
		t.Fatalf("jobs=%d calls=%d", len(res.Jobs), len(r.calls))
	}
	if !strings.HasPrefix(res.RunID, "run_") {
		t.Fatalf("run id %q", res.RunID)
	}
	if r.calls[0].runID != res.RunID || r.calls[0].payload["path"] != "/data/deals.xlsx" {
		t.Fatalf("ingest call=%+v", r.calls[0])
	}
	if r.calls[1].payload["source_run_id"] != res.RunID {
		t.Fatalf("transform payload=%v", r.calls[1].payload)
	}
	if r.calls[2].runID != "" {
		t.Fatalf("extract should get a generated run id, got %q", r.calls[2].runID)
	}
}

func TestRunChainStopsAtFirstFailure(t *testing.T) {
	r := &fakeRunner{failOn: "resolve"}
	s := New(logger.Nop(), r, DefaultChain(""))
	res, err := s.RunChain(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.FailedAt != "resolve" {
		t.Fatalf("failed_at=%q", res.FailedAt)
	}
	if len(r.calls) != 4 {
		t.Fatalf("calls=%d want 4", len(r.calls))
	}
	if r.calls[0].payload != nil {
		t.Fatalf("transform without ingest should not be scoped: %v", r.calls[0].payload)
	}
}

func TestRunChainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{}
	res, err := New(nil, r, DefaultChain("")).RunChain(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if len(r.calls) != 0 || res.FailedAt != "transform" {
		t.Fatalf("calls=%d failed_at=%q", len(r.calls), res.FailedAt)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(logger.Nop(), &fakeRunner{}, nil)
	if err := s.Start(context.Background(), "not a cron"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.Start(context.Background(), "0 2 * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background(), "0 2 * * *"); err == nil {
		t.Fatalf("expected second Start to fail")
	}
	s.Stop()
	s.Stop()
}
