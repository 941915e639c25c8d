package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/observability"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const DefaultPageSize = 1000

type SweepDeps struct {
	Log *logger.Logger

	Quarantine repos.QuarantineRepo
	Link       repos.LinkRepo
	Fund       repos.FundRepo
	Person     repos.PersonRepo

	PageSize int
}

type SweepInput struct {
	RunID string `json:"run_id,omitempty"`
}

type SweepOutput struct {
	// Quarantined counts newly inserted rows per source table.
	Quarantined map[string]int64 `json:"quarantined"`
	// Failed lists the source tables whose sweep errored.
	Failed []string `json:"failed,omitempty"`
}

// Offender is one record whose reference could not be resolved.
type Offender struct {
	RecordID string
	Details  string
	Context  map[string]any
}

// Sweep quarantines every unresolved investor firm, unmanaged fund and
// unemployed person. The sweeps are independent; one failing is logged and
// recorded without stopping the others.
func Sweep(ctx context.Context, deps SweepDeps, in SweepInput) (SweepOutput, error) {
	out := SweepOutput{Quarantined: map[string]int64{}}
	if deps.Quarantine == nil || deps.Link == nil || deps.Fund == nil || deps.Person == nil {
		return out, fmt.Errorf("quarantine sweep: missing deps: %w", dgerrors.ErrNotConfigured)
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultPageSize
	}
	ctx, span := observability.StartStage(ctx, "quarantine_sweep")
	defer func() { observability.EndStage(span, nil) }()

	sweeps := []struct {
		table string
		run   func(context.Context, SweepDeps, string) (int64, error)
	}{
		{types.SourceDealInvestorFirm, sweepInvestorFirms},
		{types.SourceFundManagerLink, sweepFundManagers},
		{types.SourcePersonEmployment, sweepEmployment},
	}
	var failures []observability.DataQualityIssue
	for _, s := range sweeps {
		n, err := s.run(ctx, deps, in.RunID)
		out.Quarantined[s.table] = n
		observability.Current().AddQuarantined(s.table, n)
		if err != nil {
			deps.Log.Error("quarantine sweep failed", "source_table", s.table, "error", err)
			out.Failed = append(out.Failed, s.table)
			failures = append(failures, observability.DataQualityIssue{
				Issue:   observability.IssueSweepFailed,
				Key:     s.table,
				Count:   1,
				Samples: []string{err.Error()},
			})
		}
	}
	if len(failures) > 0 {
		observability.ReportDataQuality(ctx, deps.Log, "quarantine_sweep", failures, nil)
	}
	deps.Log.Info("quarantine sweep finished", "quarantined", out.Quarantined, "failed", out.Failed)
	return out, nil
}

// Quarantine inserts offenders for one source table and error type. An
// offender already quarantined for the same error is left untouched.
func Quarantine(ctx context.Context, repo repos.QuarantineRepo, sourceTable, errorType, runID string, offenders []Offender) (int64, error) {
	if repo == nil {
		return 0, fmt.Errorf("quarantine: %w", dgerrors.ErrNotConfigured)
	}
	if sourceTable == "" || errorType == "" {
		return 0, fmt.Errorf("quarantine: source table and error type are required: %w", dgerrors.ErrInvalidArgument)
	}
	if len(offenders) == 0 {
		return 0, nil
	}
	var run *string
	if runID != "" {
		run = &runID
	}
	rows := make([]*types.QuarantineRecord, 0, len(offenders))
	for _, o := range offenders {
		raw, err := json.Marshal(o.Context)
		if err != nil {
			return 0, fmt.Errorf("quarantine %s: encode context: %w", o.RecordID, err)
		}
		rows = append(rows, &types.QuarantineRecord{
			SourceTable:    sourceTable,
			SourceRecordID: o.RecordID,
			ErrorType:      errorType,
			ErrorDetails:   o.Details,
			RawData:        datatypes.JSON(raw),
			RunID:          run,
		})
	}
	return repo.CreateIgnoreDuplicates(dbctx.Context{Ctx: ctx}, rows)
}

func sweepInvestorFirms(ctx context.Context, deps SweepDeps, runID string) (int64, error) {
	var total int64
	after := uuid.Nil
	for {
		rows, err := deps.Link.PageUnresolvedInvestorFirms(dbctx.Context{Ctx: ctx}, after, deps.PageSize)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}
		offenders := make([]Offender, 0, len(rows))
		for _, r := range rows {
			offenders = append(offenders, Offender{
				RecordID: r.ID.String(),
				Details:  fmt.Sprintf("no firm matches investor name %q", r.InvestorFirmNameRaw),
				Context: map[string]any{
					"deal_id":                r.DealID.String(),
					"investor_firm_name_raw": r.InvestorFirmNameRaw,
					"investor_type":          r.InvestorType,
					"role_in_deal":           r.RoleInDeal,
					"source_file":            r.SourceFile,
				},
			})
		}
		n, err := Quarantine(ctx, deps.Quarantine, types.SourceDealInvestorFirm, types.ErrorUnresolvedInvestorFirm, runID, offenders)
		total += n
		if err != nil {
			return total, err
		}
		after = rows[len(rows)-1].ID
	}
}

func sweepFundManagers(ctx context.Context, deps SweepDeps, runID string) (int64, error) {
	var total int64
	after := uuid.Nil
	for {
		funds, err := deps.Fund.PageUnmanaged(dbctx.Context{Ctx: ctx}, after, deps.PageSize)
		if err != nil {
			return total, err
		}
		if len(funds) == 0 {
			return total, nil
		}
		offenders := make([]Offender, 0, len(funds))
		for _, f := range funds {
			offenders = append(offenders, Offender{
				RecordID: f.ID.String(),
				Details:  fmt.Sprintf("no manager firm found for fund %q", f.Name),
				Context: map[string]any{
					"fund_id":                f.ID.String(),
					"fund_name":              f.Name,
					"fund_source_id":         f.SourceID,
					"manager_firm_name":      f.ManagerFirmName,
					"manager_firm_source_id": f.ManagerFirmSourceID,
				},
			})
		}
		n, err := Quarantine(ctx, deps.Quarantine, types.SourceFundManagerLink, types.ErrorUnresolvedManagerFirm, runID, offenders)
		total += n
		if err != nil {
			return total, err
		}
		after = funds[len(funds)-1].ID
	}
}

func sweepEmployment(ctx context.Context, deps SweepDeps, runID string) (int64, error) {
	var total int64
	after := uuid.Nil
	for {
		people, err := deps.Person.PageWithoutEmployment(dbctx.Context{Ctx: ctx}, after, deps.PageSize)
		if err != nil {
			return total, err
		}
		if len(people) == 0 {
			return total, nil
		}
		offenders := make([]Offender, 0, len(people))
		for _, p := range people {
			offenders = append(offenders, Offender{
				RecordID: p.ID.String(),
				Details:  fmt.Sprintf("no employer firm found for %q", p.FullName),
				Context: map[string]any{
					"person_id":      p.ID.String(),
					"full_name":      p.FullName,
					"source_id":      p.SourceID,
					"firm_source_id": p.FirmSourceID,
					"firm_name":      p.FirmName,
				},
			})
		}
		n, err := Quarantine(ctx, deps.Quarantine, types.SourcePersonEmployment, types.ErrorUnresolvedEmploymentFirm, runID, offenders)
		total += n
		if err != nil {
			return total, err
		}
		after = people[len(people)-1].ID
	}
}
