package quarantine

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Quarantine repos.QuarantineRepo
	Link       repos.LinkRepo
	Firm       repos.FirmRepo
	Fund       repos.FundRepo
	Person     repos.PersonRepo
	Alias      repos.AliasRepo

	PageSize int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	SweepInput    = steps.SweepInput
	SweepOutput   = steps.SweepOutput
	Offender      = steps.Offender
	SummaryOutput = steps.SummaryOutput
	ListInput     = steps.ListInput
	ListOutput    = steps.ListOutput
	ReplayOutput  = steps.ReplayOutput
)

func (u Usecases) Sweep(ctx context.Context, in SweepInput) (SweepOutput, error) {
	return steps.Sweep(ctx, steps.SweepDeps{
		Log:        u.deps.Log,
		Quarantine: u.deps.Quarantine,
		Link:       u.deps.Link,
		Fund:       u.deps.Fund,
		Person:     u.deps.Person,
		PageSize:   u.deps.PageSize,
	}, in)
}

// Quarantine records offenders found by callers outside the standard sweeps.
func (u Usecases) Quarantine(ctx context.Context, sourceTable, errorType, runID string, offenders []Offender) (int64, error) {
	return steps.Quarantine(ctx, u.deps.Quarantine, sourceTable, errorType, runID, offenders)
}

func (u Usecases) Summary(ctx context.Context) (SummaryOutput, error) {
	return steps.Summary(ctx, u.deps.Quarantine)
}

func (u Usecases) List(ctx context.Context, in ListInput) (ListOutput, error) {
	return steps.List(ctx, u.deps.Quarantine, in)
}

func (u Usecases) Resolve(ctx context.Context, ids []uuid.UUID, notes string) (int64, error) {
	return steps.Resolve(ctx, u.deps.Quarantine, ids, notes)
}

func (u Usecases) Replay(ctx context.Context) (ReplayOutput, error) {
	return steps.Replay(ctx, steps.ReplayDeps{
		Log:        u.deps.Log,
		Quarantine: u.deps.Quarantine,
		Link:       u.deps.Link,
		Firm:       u.deps.Firm,
		Alias:      u.deps.Alias,
		PageSize:   u.deps.PageSize,
	})
}
