package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/extract"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_docs"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_embeddings"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/ingest"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/link"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/quarantine_sweep"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/rebuild_edges"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/resolve"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/transform"
	"github.com/yungbote/dealgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type JobRunner interface {
	Run(ctx context.Context, jobType, runID string, payload map[string]any) (*types.JobRun, error)
}

// Step is one stage of the nightly chain. Payload receives the chain's run
// id so stages can scope themselves to the rows that run ingested.
type Step struct {
	JobType string
	Payload func(runID string) map[string]any
}

// DefaultChain runs every stage in dependency order. Ingestion is skipped
// when path is empty, leaving the downstream stages to pick up whatever is
// already staged.
func DefaultChain(path string) []Step {
	var steps []Step
	if path = strings.TrimSpace(path); path != "" {
		steps = append(steps, Step{JobType: ingest.JobType, Payload: func(string) map[string]any {
			return map[string]any{"path": path}
		}})
	}
	return append(steps,
		Step{JobType: transform.JobType, Payload: func(runID string) map[string]any {
			if path == "" {
				return nil
			}
			return map[string]any{"source_run_id": runID}
		}},
		Step{JobType: extract.JobType},
		Step{JobType: link.JobType},
		Step{JobType: resolve.JobType},
		Step{JobType: quarantine_sweep.JobType},
		Step{JobType: rebuild_edges.JobType},
		Step{JobType: generate_docs.JobType},
		Step{JobType: generate_embeddings.JobType},
	)
}

type ChainResult struct {
	RunID    string          `json:"run_id"`
	Jobs     []*types.JobRun `json:"jobs"`
	FailedAt string          `json:"failed_at,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Scheduler struct {
	log    *logger.Logger
	runner JobRunner
	chain  []Step
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(baseLog *logger.Logger, runner JobRunner, chain []Step) *Scheduler {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Scheduler{
		log:    baseLog.With("component", "Scheduler"),
		runner: runner,
		chain:  chain,
		now:    time.Now,
	}
}

// RunChain executes the chain once under a fresh run id and stops at the
// first failing stage.
func (s *Scheduler) RunChain(ctx context.Context) (ChainResult, error) {
	if s == nil || s.runner == nil {
		return ChainResult{}, fmt.Errorf("scheduler: runner is nil")
	}
	res := ChainResult{RunID: ctxutil.NewRunID(s.now())}
	log := s.log.With("run_id", res.RunID)
	log.Info("chain started", "stages", len(s.chain))
	for _, st := range s.chain {
		if err := ctx.Err(); err != nil {
			res.FailedAt = st.JobType
			res.Error = err.Error()
			return res, err
		}
		var payload map[string]any
		if st.Payload != nil {
			payload = st.Payload(res.RunID)
		}
		runID := ""
		if st.JobType == ingest.JobType {
			runID = res.RunID
		}
		job, err := s.runner.Run(ctx, st.JobType, runID, payload)
		if job != nil {
			res.Jobs = append(res.Jobs, job)
		}
		if err != nil {
			res.FailedAt = st.JobType
			res.Error = err.Error()
			log.Warn("chain stopped", "stage", st.JobType, "error", err)
			return res, fmt.Errorf("%s: %w", st.JobType, err)
		}
	}
	log.Info("chain finished", "stages", len(res.Jobs))
	return res, nil
}

// Start registers the chain on spec (standard five-field cron syntax). A
// tick that fires while the previous chain is still running is skipped.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	schedule, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.RunChain(ctx); err != nil {
			s.log.Error("scheduled chain failed", "error", err)
		}
	}))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.cron = c
	c.Start()
	s.log.Info("scheduler started", "schedule", spec, "next", schedule.Next(s.now()).UTC().Format(time.RFC3339))
	return nil
}

// Stop waits for a running chain to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
