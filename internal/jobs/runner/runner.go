package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// Runner executes registered handlers synchronously and records each
// execution as a job_run row.
type Runner struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	now      func() time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry) *Runner {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Runner{
		db:       db,
		log:      baseLog.With("component", "JobRunner"),
		repo:     repo,
		registry: registry,
		now:      time.Now,
	}
}

// Run executes jobType with payload. The returned row reflects the final
// ledger state; the error is the handler's failure, if any.
func (r *Runner) Run(ctx context.Context, jobType, runID string, payload map[string]any) (*types.JobRun, error) {
	if r == nil || r.registry == nil || r.repo == nil {
		return nil, fmt.Errorf("runner: %w", dgerrors.ErrNotConfigured)
	}
	h, ok := r.registry.Get(jobType)
	if !ok {
		return nil, fmt.Errorf("no handler registered for job_type=%s: %w", jobType, dgerrors.ErrInvalidArgument)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	// payload.run_id is set only when the caller chose the id.
	if runID = strings.TrimSpace(runID); runID != "" {
		payload["run_id"] = runID
	} else {
		runID = ctxutil.NewRunID(r.now())
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	start := r.now().UTC()
	job := &types.JobRun{
		JobType:     jobType,
		RunID:       runID,
		Status:      types.JobStatusRunning,
		Stage:       "start",
		Payload:     datatypes.JSON(raw),
		Result:      datatypes.JSON([]byte("{}")),
		StartedAt:   &start,
		HeartbeatAt: &start,
	}
	if _, err := r.repo.Create(dbctx.Context{Ctx: ctx}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job_run: %w", err)
	}

	log := r.log.With("job_type", jobType, "job_id", job.ID, "run_id", runID)
	log.Info("job started")
	jc := runtime.NewContext(ctx, r.db, job, r.repo)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("job handler panic", "panic", rec)
				jc.Fail("panic", fmt.Errorf("panic: %v", rec))
			}
		}()
		if runErr := h.Run(jc); runErr != nil && job.Status == types.JobStatusRunning {
			// Pipelines normally call Fail themselves.
			jc.Fail("run", runErr)
		}
	}()
	if job.Status == types.JobStatusRunning {
		jc.Succeed("done", nil)
	}

	dur := r.now().Sub(start)
	observability.Current().ObserveStage(jobType, job.Status, dur)
	if jc.Err() != nil {
		log.Warn("job failed", "stage", job.Stage, "error", jc.Err(), "duration", dur.String())
		return job, jc.Err()
	}
	log.Info("job finished", "duration", dur.String())
	return job, nil
}

// Recent lists the latest job_run rows, newest first.
func (r *Runner) Recent(ctx context.Context, jobType string, limit int) ([]*types.JobRun, error) {
	if r == nil || r.repo == nil {
		return nil, fmt.Errorf("runner: %w", dgerrors.ErrNotConfigured)
	}
	return r.repo.ListRecent(dbctx.Context{Ctx: ctx}, jobType, limit)
}

func (r *Runner) Types() []string {
	if r == nil || r.registry == nil {
		return nil
	}
	return r.registry.Types()
}
