package steps

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/quality"
	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

type fixture struct {
	db  *gorm.DB
	set *repos.Set
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.DB(t)
	return fixture{db: db, set: repos.NewSet(db, testutil.Logger(t))}
}

func (f fixture) sweepDeps(t *testing.T) SweepDeps {
	return SweepDeps{
		Log:        testutil.Logger(t),
		Quarantine: f.set.Quarantine,
		Link:       f.set.Link,
		Fund:       f.set.Fund,
		Person:     f.set.Person,
		PageSize:   2,
	}
}

func (f fixture) replayDeps(t *testing.T) ReplayDeps {
	return ReplayDeps{
		Log:        testutil.Logger(t),
		Quarantine: f.set.Quarantine,
		Link:       f.set.Link,
		Firm:       f.set.Firm,
		Alias:      f.set.Alias,
		PageSize:   2,
	}
}

func TestSweepQuarantinesEachUnresolvedReferenceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deal := testutil.SeedDeal(t, f.db, "D1", nil, nil)
	for _, name := range []string{"Nobody Partners", "Ghost Capital", "Phantom Equity"} {
		testutil.SeedInvestor(t, f.db, deal.ID, name, nil)
	}
	fund := testutil.SeedFund(t, f.db, "FUND-1", "Orphan Fund I", testutil.PtrString("GP-404"))
	person := testutil.SeedPerson(t, f.db, "C-1", "Jane Doe", testutil.PtrString("GP-404"))

	out, err := Sweep(ctx, f.sweepDeps(t), SweepInput{RunID: "run_1"})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(out.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", out.Failed)
	}
	want := map[string]int64{
		types.SourceDealInvestorFirm: 3,
		types.SourceFundManagerLink:  1,
		types.SourcePersonEmployment: 1,
	}
	for table, n := range want {
		if out.Quarantined[table] != n {
			t.Fatalf("%s: quarantined %d, want %d", table, out.Quarantined[table], n)
		}
	}

	again, err := Sweep(ctx, f.sweepDeps(t), SweepInput{RunID: "run_2"})
	if err != nil {
		t.Fatalf("Sweep again: %v", err)
	}
	for table, n := range again.Quarantined {
		if n != 0 {
			t.Fatalf("%s: second sweep inserted %d rows", table, n)
		}
	}

	sum, err := Summary(ctx, f.set.Quarantine)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalUnresolved != 5 || len(sum.ByType) != 3 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	list, err := List(ctx, f.set.Quarantine, ListInput{SourceTable: types.SourceFundManagerLink})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 || len(list.Records) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	rec := list.Records[0]
	if rec.SourceRecordID != fund.ID.String() || rec.ErrorType != types.ErrorUnresolvedManagerFirm {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.RunID == nil || *rec.RunID != "run_1" {
		t.Fatalf("run id not kept from the first sweep: %v", rec.RunID)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.RawData, &raw); err != nil {
		t.Fatalf("raw data: %v", err)
	}
	if raw["fund_name"] != "Orphan Fund I" || raw["manager_firm_source_id"] != "GP-404" {
		t.Fatalf("unexpected context: %v", raw)
	}

	people, err := List(ctx, f.set.Quarantine, ListInput{SourceTable: types.SourcePersonEmployment})
	if err != nil || len(people.Records) != 1 || people.Records[0].SourceRecordID != person.ID.String() {
		t.Fatalf("person not quarantined: %+v %v", people, err)
	}
}

func TestSweepSkipsResolvedReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	firm := testutil.SeedFirm(t, f.db, "GP-1", "Acme Capital")
	deal := testutil.SeedDeal(t, f.db, "D1", nil, nil)
	testutil.SeedInvestor(t, f.db, deal.ID, "Acme Capital", testutil.PtrUUID(firm.ID))
	fund := testutil.SeedFund(t, f.db, "FUND-1", "Acme Fund I", testutil.PtrString("GP-1"))
	if err := f.set.Fund.SetManagingFirm(dbctx.Context{Ctx: ctx}, fund.ID, firm.ID); err != nil {
		t.Fatalf("SetManagingFirm: %v", err)
	}
	// No employer reference at all: nothing to resolve, nothing to quarantine.
	testutil.SeedPerson(t, f.db, "C-1", "John Roe", nil)

	out, err := Sweep(ctx, f.sweepDeps(t), SweepInput{})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	for table, n := range out.Quarantined {
		if n != 0 {
			t.Fatalf("%s: quarantined %d rows", table, n)
		}
	}
}

func TestSweepRequiresDeps(t *testing.T) {
	_, err := Sweep(context.Background(), SweepDeps{}, SweepInput{})
	if !errors.Is(err, dgerrors.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestQuarantineValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := Quarantine(context.Background(), f.set.Quarantine, "", types.ErrorUnresolvedInvestorFirm, "", []Offender{{RecordID: "x"}})
	if !errors.Is(err, dgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	n, err := Quarantine(context.Background(), f.set.Quarantine, "custom", "custom_error", "", nil)
	if err != nil || n != 0 {
		t.Fatalf("empty offenders: %d %v", n, err)
	}
}

func TestListClampsPaging(t *testing.T) {
	f := newFixture(t)
	out, err := List(context.Background(), f.set.Quarantine, ListInput{Page: -3, PageSize: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if out.Page != 1 || out.PageSize != 100 {
		t.Fatalf("paging not clamped: page=%d size=%d", out.Page, out.PageSize)
	}
	out, err = List(context.Background(), f.set.Quarantine, ListInput{})
	if err != nil || out.PageSize != 20 {
		t.Fatalf("default page size: %d %v", out.PageSize, err)
	}
}

func TestResolveMarksRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := Quarantine(ctx, f.set.Quarantine, types.SourceDealInvestorFirm, types.ErrorUnresolvedInvestorFirm, "", []Offender{
		{RecordID: "a", Details: "no match"},
		{RecordID: "b", Details: "no match"},
	}); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	list, err := List(ctx, f.set.Quarantine, ListInput{})
	if err != nil || len(list.Records) != 2 {
		t.Fatalf("List: %+v %v", list, err)
	}

	if _, err := Resolve(ctx, f.set.Quarantine, nil, "x"); !errors.Is(err, dgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	n, err := Resolve(ctx, f.set.Quarantine, []uuid.UUID{list.Records[0].ID}, "merged by analyst")
	if err != nil || n != 1 {
		t.Fatalf("Resolve: %d %v", n, err)
	}
	n, err = Resolve(ctx, f.set.Quarantine, []uuid.UUID{list.Records[0].ID}, "again")
	if err != nil || n != 0 {
		t.Fatalf("Resolve twice: %d %v", n, err)
	}

	sum, err := Summary(ctx, f.set.Quarantine)
	if err != nil || sum.TotalUnresolved != 1 {
		t.Fatalf("Summary after resolve: %+v %v", sum, err)
	}
}

func TestReplayResolvesAgainstNewFirmsAndAliases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	deal := testutil.SeedDeal(t, f.db, "D1", nil, nil)
	acme := testutil.SeedInvestor(t, f.db, deal.ID, "Acme Capital", nil)
	beta := testutil.SeedInvestor(t, f.db, deal.ID, "Beta Growth", nil)
	testutil.SeedInvestor(t, f.db, deal.ID, "Nobody Partners", nil)

	if _, err := Sweep(ctx, f.sweepDeps(t), SweepInput{}); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	acmeFirm := testutil.SeedFirm(t, f.db, "GP-1", "Acme Capital")
	betaFirm := testutil.SeedFirm(t, f.db, "GP-2", "Bravo Ventures")
	if _, err := f.set.Alias.UpsertFirmAliases(dbc, []*types.FirmAlias{{
		CanonicalFirmID:     betaFirm.ID,
		AliasText:           "Beta Growth",
		AliasTextNormalized: normalization.Name("Beta Growth"),
		MatchMethod:         types.ResolutionProbabilistic,
		ConfidenceScore:     0.85,
	}}); err != nil {
		t.Fatalf("UpsertFirmAliases: %v", err)
	}

	out, err := Replay(ctx, f.replayDeps(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if out.Attempted != 3 || out.Resolved != 2 || out.StillUnresolved != 1 {
		t.Fatalf("unexpected replay output: %+v", out)
	}

	var got []types.DealInvestorFirm
	if err := f.db.Where("deal_id = ?", deal.ID).Find(&got).Error; err != nil {
		t.Fatalf("load investors: %v", err)
	}
	byID := map[uuid.UUID]types.DealInvestorFirm{}
	for _, r := range got {
		byID[r.ID] = r
	}
	if r := byID[acme.ID]; r.InvestorFirmID == nil || *r.InvestorFirmID != acmeFirm.ID || r.ResolutionMethod != types.ResolutionExact || r.ConfidenceScore != 0.90 {
		t.Fatalf("acme not resolved exactly: %+v", r)
	}
	if r := byID[beta.ID]; r.InvestorFirmID == nil || *r.InvestorFirmID != betaFirm.ID || r.ResolutionMethod != types.ResolutionAlias || r.ConfidenceScore != 0.85 {
		t.Fatalf("beta not resolved by alias: %+v", r)
	}

	open := false
	rows, total, err := f.set.Quarantine.List(dbc, quality.Filter{SourceTable: types.SourceDealInvestorFirm, Resolved: &open}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected one open investor offender, got %d", total)
	}
	var ctxData map[string]any
	if err := json.Unmarshal(rows[0].RawData, &ctxData); err != nil || ctxData["investor_firm_name_raw"] != "Nobody Partners" {
		t.Fatalf("unexpected open offender: %v %v", ctxData, err)
	}

	again, err := Replay(ctx, f.replayDeps(t))
	if err != nil || again.Attempted != 1 || again.Resolved != 0 {
		t.Fatalf("second replay: %+v %v", again, err)
	}
}
