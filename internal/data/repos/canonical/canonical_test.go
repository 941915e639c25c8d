package canonical

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func TestFirmUpsertIsIdempotentAndKeepsStoredValues(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewFirmRepo(db, testutil.Logger(t))

	first := []*types.Firm{{
		SourceID:            "F1",
		Name:                "Acme Capital",
		NameNormalized:      "acme",
		HeadquartersCountry: testutil.PtrString("US"),
		AumUSD:              testutil.PtrFloat(5e9),
	}}
	if _, err := repo.Upsert(dbc, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Same key again: the null country must not erase the stored one.
	second := []*types.Firm{{
		SourceID:       "F1",
		Name:           "Acme Capital Partners",
		NameNormalized: "acme capital",
		FirmType:       testutil.PtrString("Private Equity"),
	}}
	if _, err := repo.Upsert(dbc, second); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	n, err := repo.Count(dbc)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 firm, got %d", n)
	}

	ids, err := repo.IDsBySourceIDs(dbc, []string{"F1", "missing"})
	if err != nil {
		t.Fatalf("IDsBySourceIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one id, got %v", ids)
	}
	got, err := repo.GetByID(dbc, ids["F1"])
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Acme Capital Partners" {
		t.Fatalf("name not updated: %q", got.Name)
	}
	if got.HeadquartersCountry == nil || *got.HeadquartersCountry != "US" {
		t.Fatalf("country lost: %v", got.HeadquartersCountry)
	}
	if got.AumUSD == nil || *got.AumUSD != 5e9 {
		t.Fatalf("aum lost: %v", got.AumUSD)
	}
	if got.FirmType == nil || *got.FirmType != "Private Equity" {
		t.Fatalf("firm type not set: %v", got.FirmType)
	}
	if got.ConfidenceScore != 1 || got.SourceSystem != types.DefaultSourceSystem {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestIDsByNormalizedNamesPicksSmallestID(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewFirmRepo(db, testutil.Logger(t))

	a := testutil.SeedFirm(t, db, "A", "Blue Ridge")
	b := testutil.SeedFirm(t, db, "B", "Blue Ridge LLC")
	want := a.ID
	if b.ID.String() < a.ID.String() {
		want = b.ID
	}

	ids, err := repo.IDsByNormalizedNames(dbc, []string{"blue ridge"})
	if err != nil {
		t.Fatalf("IDsByNormalizedNames: %v", err)
	}
	if ids["blue ridge"] != want {
		t.Fatalf("expected %s, got %s", want, ids["blue ridge"])
	}
}

func TestAliasUpsertKeepsGreatestConfidence(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewAliasRepo(db, testutil.Logger(t))
	firm := testutil.SeedFirm(t, db, "F1", "Northwind")

	write := func(conf float64) {
		t.Helper()
		_, err := repo.UpsertFirmAliases(dbc, []*types.FirmAlias{{
			CanonicalFirmID:     firm.ID,
			AliasText:           "Northwind Capital",
			AliasTextNormalized: "northwind",
			MatchMethod:         types.ResolutionProbabilistic,
			ConfidenceScore:     conf,
		}})
		if err != nil {
			t.Fatalf("UpsertFirmAliases: %v", err)
		}
	}
	write(0.91)
	write(0.85)

	rows, err := repo.ListFirmAliases(dbc, firm.ID)
	if err != nil {
		t.Fatalf("ListFirmAliases: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one alias row, got %d", len(rows))
	}
	if rows[0].ConfidenceScore != 0.91 {
		t.Fatalf("expected confidence 0.91 kept, got %v", rows[0].ConfidenceScore)
	}

	write(0.97)
	hits, err := repo.MatchFirms(dbc, []string{"northwind", "other"})
	if err != nil {
		t.Fatalf("MatchFirms: %v", err)
	}
	if len(hits) != 1 || hits["northwind"].CanonicalID != firm.ID || hits["northwind"].ConfidenceScore != 0.97 {
		t.Fatalf("unexpected alias hits: %+v", hits)
	}
}

func TestLinkInsertsIgnoreDuplicates(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	links := NewLinkRepo(db, testutil.Logger(t))

	firm := testutil.SeedFirm(t, db, "F1", "Acme")
	deal := testutil.SeedDeal(t, db, "D1", nil, nil)

	row := func() []*types.DealInvestorFirm {
		return []*types.DealInvestorFirm{
			{DealID: deal.ID, InvestorFirmNameRaw: "Acme", InvestorFirmID: testutil.PtrUUID(firm.ID), ResolutionMethod: types.ResolutionExact, ConfidenceScore: 0.9},
			{DealID: deal.ID, InvestorFirmNameRaw: "Nobody Partners", ResolutionMethod: types.ResolutionUnresolved},
		}
	}
	if _, err := links.CreateDealInvestorFirms(dbc, row()); err != nil {
		t.Fatalf("CreateDealInvestorFirms: %v", err)
	}
	if _, err := links.CreateDealInvestorFirms(dbc, row()); err != nil {
		t.Fatalf("CreateDealInvestorFirms again: %v", err)
	}

	counts, err := links.Counts(dbc)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["deal_investor_firm"] != 2 || counts["deal_investor_firm_unresolved"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	open, err := links.PageUnresolvedInvestorFirms(dbc, uuid.Nil, 10)
	if err != nil || len(open) != 1 {
		t.Fatalf("PageUnresolvedInvestorFirms: %v (%d rows)", err, len(open))
	}
	other := testutil.SeedFirm(t, db, "F2", "Nobody Partners")
	changed, err := links.ResolveInvestorFirm(dbc, open[0].ID, other.ID, types.ResolutionAlias, 0.8)
	if err != nil || !changed {
		t.Fatalf("ResolveInvestorFirm: changed=%v err=%v", changed, err)
	}
	changed, err = links.ResolveInvestorFirm(dbc, open[0].ID, firm.ID, types.ResolutionAlias, 0.8)
	if err != nil || changed {
		t.Fatalf("resolved row must not change again: changed=%v err=%v", changed, err)
	}

	rows, last, err := links.ResolvedInvestorsByDeal(dbc, uuid.Nil, 10)
	if err != nil {
		t.Fatalf("ResolvedInvestorsByDeal: %v", err)
	}
	if len(rows) != 2 || last != deal.ID {
		t.Fatalf("expected two resolved investors on %s, got %d (last %s)", deal.ID, len(rows), last)
	}
}

func TestDealListSharedOrdersNewestFirst(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	deals := NewDealRepo(db, testutil.Logger(t))

	a := testutil.SeedFirm(t, db, "A", "Alpha")
	b := testutil.SeedFirm(t, db, "B", "Beta")
	old := testutil.SeedDeal(t, db, "D-old", testutil.PtrTime(testutil.Date(2019, 3, 1)), nil)
	recent := testutil.SeedDeal(t, db, "D-new", testutil.PtrTime(testutil.Date(2023, 6, 1)), nil)
	undated := testutil.SeedDeal(t, db, "D-undated", nil, nil)
	solo := testutil.SeedDeal(t, db, "D-solo", testutil.PtrTime(testutil.Date(2024, 1, 1)), nil)

	for _, d := range []*types.Deal{old, recent, undated} {
		testutil.SeedInvestor(t, db, d.ID, "Alpha", testutil.PtrUUID(a.ID))
		testutil.SeedInvestor(t, db, d.ID, "Beta", testutil.PtrUUID(b.ID))
	}
	testutil.SeedInvestor(t, db, solo.ID, "Alpha", testutil.PtrUUID(a.ID))

	got, err := deals.ListShared(dbc, a.ID, b.ID, 10)
	if err != nil {
		t.Fatalf("ListShared: %v", err)
	}
	want := []uuid.UUID{recent.ID, old.ID, undated.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d shared deals, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i].ID)
		}
	}

	byA, err := deals.ListByInvestor(dbc, a.ID, 10)
	if err != nil || len(byA) != 4 || byA[0].ID != solo.ID {
		t.Fatalf("ListByInvestor: %v (%d rows)", err, len(byA))
	}
}

func TestFundManagerLinking(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	funds := NewFundRepo(db, testutil.Logger(t))

	firm := testutil.SeedFirm(t, db, "F1", "Acme")
	managed := testutil.SeedFund(t, db, "FD1", "Acme Fund I", testutil.PtrString("F1"))
	testutil.SeedFund(t, db, "FD2", "Orphan Fund", nil)

	page, err := funds.PageUnmanaged(dbc, uuid.Nil, 10)
	if err != nil {
		t.Fatalf("PageUnmanaged: %v", err)
	}
	if len(page) != 1 || page[0].ID != managed.ID {
		t.Fatalf("expected only the fund with a manager reference, got %d", len(page))
	}
	if err := funds.SetManagingFirm(dbc, managed.ID, firm.ID); err != nil {
		t.Fatalf("SetManagingFirm: %v", err)
	}
	page, err = funds.PageUnmanaged(dbc, uuid.Nil, 10)
	if err != nil || len(page) != 0 {
		t.Fatalf("expected no unmanaged funds: %v (%d)", err, len(page))
	}
	byFirm, err := funds.ListByManagingFirm(dbc, firm.ID)
	if err != nil || len(byFirm) != 1 {
		t.Fatalf("ListByManagingFirm: %v (%d)", err, len(byFirm))
	}
}
