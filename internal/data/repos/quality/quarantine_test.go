package quality

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func offender(table, recordID, errType string) *types.QuarantineRecord {
	return &types.QuarantineRecord{
		SourceTable:    table,
		SourceRecordID: recordID,
		ErrorType:      errType,
		ErrorDetails:   "no match",
		RawData:        datatypes.JSON([]byte(`{"name":"x"}`)),
	}
}

func TestQuarantineSweepsNeverDuplicate(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewQuarantineRepo(db, testutil.Logger(t))

	batch := func() []*types.QuarantineRecord {
		return []*types.QuarantineRecord{
			offender(types.SourceDealInvestorFirm, "r1", types.ErrorUnresolvedInvestorFirm),
			offender(types.SourceDealInvestorFirm, "r2", types.ErrorUnresolvedInvestorFirm),
			offender(types.SourceFundManagerLink, "f1", types.ErrorUnresolvedManagerFirm),
		}
	}
	if _, err := repo.CreateIgnoreDuplicates(dbc, batch()); err != nil {
		t.Fatalf("CreateIgnoreDuplicates: %v", err)
	}
	if _, err := repo.CreateIgnoreDuplicates(dbc, batch()); err != nil {
		t.Fatalf("CreateIgnoreDuplicates again: %v", err)
	}

	open, err := repo.CountUnresolved(dbc)
	if err != nil || open != 3 {
		t.Fatalf("CountUnresolved: %d %v", open, err)
	}

	summary, err := repo.Summary(dbc)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected two summary groups, got %+v", summary)
	}
	if summary[0].SourceTable != types.SourceDealInvestorFirm || summary[0].Count != 2 {
		t.Fatalf("unexpected first group: %+v", summary[0])
	}
	if summary[0].Oldest.IsZero() || summary[0].Newest.Before(summary[0].Oldest) {
		t.Fatalf("bad summary timestamps: %+v", summary[0])
	}

	n, err := repo.MarkResolvedBySource(dbc, types.SourceDealInvestorFirm, "r1", types.ErrorUnresolvedInvestorFirm, "replayed")
	if err != nil || n != 1 {
		t.Fatalf("MarkResolvedBySource: %d %v", n, err)
	}
	// A resolved offender is never reopened by a later sweep.
	if _, err := repo.CreateIgnoreDuplicates(dbc, batch()); err != nil {
		t.Fatalf("CreateIgnoreDuplicates after resolve: %v", err)
	}
	resolved := true
	rows, total, err := repo.List(dbc, Filter{Resolved: &resolved}, 0, 10)
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("List resolved: total=%d err=%v", total, err)
	}
	if rows[0].ReprocessedAt == nil || rows[0].ResolutionNotes == nil || *rows[0].ResolutionNotes != "replayed" {
		t.Fatalf("resolution fields not set: %+v", rows[0])
	}

	unresolved := false
	rows, total, err = repo.List(dbc, Filter{SourceTable: types.SourceDealInvestorFirm, Resolved: &unresolved}, 0, 10)
	if err != nil || total != 1 {
		t.Fatalf("List unresolved investors: total=%d err=%v", total, err)
	}
	n, err = repo.MarkResolved(dbc, []uuid.UUID{rows[0].ID}, "manual")
	if err != nil || n != 1 {
		t.Fatalf("MarkResolved: %d %v", n, err)
	}
	open, _ = repo.CountUnresolved(dbc)
	if open != 1 {
		t.Fatalf("expected one open offender, got %d", open)
	}
}
