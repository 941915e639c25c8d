package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

type fakeHandler struct {
	jobType string
	run     func(jc *runtime.Context) error
}

func (h fakeHandler) Type() string { return h.jobType }

func (h fakeHandler) Run(jc *runtime.Context) error { return h.run(jc) }

func newRunner(t *testing.T, handlers ...runtime.Handler) (*Runner, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	repo := repos.NewJobRunRepo(db, log)
	return New(db, log, repo, reg), repo
}

func TestRunSucceedsAndStoresResult(t *testing.T) {
	r, repo := newRunner(t, fakeHandler{jobType: "count", run: func(jc *runtime.Context) error {
		n, _ := jc.PayloadInt("n")
		jc.Progress("count", 50, "counting")
		jc.Succeed("done", map[string]any{"counted": n})
		return nil
	}})

	job, err := r.Run(context.Background(), "count", "run_fixed", map[string]any{"n": 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Status != types.JobStatusSucceeded || job.RunID != "run_fixed" || job.Progress != 100 {
		t.Fatalf("job=%+v", job)
	}
	stored, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal(stored.Result, &res); err != nil || res["counted"] != float64(3) {
		t.Fatalf("result=%s err=%v", stored.Result, err)
	}
	if stored.Status != types.JobStatusSucceeded || stored.FinishedAt == nil {
		t.Fatalf("stored=%+v", stored)
	}
}

func TestRunGeneratesRunIDWithoutTouchingPayload(t *testing.T) {
	var seen string
	r, _ := newRunner(t, fakeHandler{jobType: "noop", run: func(jc *runtime.Context) error {
		seen = jc.PayloadString("run_id")
		return nil
	}})
	job, err := r.Run(context.Background(), "noop", "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != "" {
		t.Fatalf("payload run_id should stay unset, got %q", seen)
	}
	if len(job.RunID) == 0 || job.RunID[:4] != "run_" {
		t.Fatalf("run id %q", job.RunID)
	}
	// A handler that returns without a terminal call still succeeds.
	if job.Status != types.JobStatusSucceeded {
		t.Fatalf("status=%s", job.Status)
	}
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("boom")
	r, repo := newRunner(t,
		fakeHandler{jobType: "fails", run: func(jc *runtime.Context) error {
			jc.Fail("work", boom, map[string]any{"partial": true})
			return nil
		}},
		fakeHandler{jobType: "errors", run: func(jc *runtime.Context) error { return boom }},
		fakeHandler{jobType: "panics", run: func(jc *runtime.Context) error { panic("kaput") }},
	)

	for _, tc := range []struct {
		jobType string
		stage   string
	}{
		{"fails", "work"},
		{"errors", "run"},
		{"panics", "panic"},
	} {
		job, err := r.Run(context.Background(), tc.jobType, "", nil)
		if err == nil {
			t.Fatalf("%s: expected error", tc.jobType)
		}
		if job.Status != types.JobStatusFailed || job.Stage != tc.stage || job.Error == "" {
			t.Fatalf("%s: job=%+v", tc.jobType, job)
		}
	}

	recent, err := r.Recent(context.Background(), "fails", 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("recent=%d err=%v", len(recent), err)
	}
	var res map[string]any
	_ = json.Unmarshal(recent[0].Result, &res)
	if res["partial"] != true {
		t.Fatalf("failed result not stored: %s", recent[0].Result)
	}
	all, _ := repo.ListRecent(dbctx.Context{Ctx: context.Background()}, "", 10)
	if len(all) != 3 {
		t.Fatalf("want 3 rows, got %d", len(all))
	}
}

func TestRunUnknownType(t *testing.T) {
	r, _ := newRunner(t)
	if _, err := r.Run(context.Background(), "missing", "", nil); !errors.Is(err, dgerrors.ErrInvalidArgument) {
		t.Fatalf("err=%v", err)
	}
	var nilRunner *Runner
	if _, err := nilRunner.Run(context.Background(), "x", "", nil); !errors.Is(err, dgerrors.ErrNotConfigured) {
		t.Fatalf("err=%v", err)
	}
}
