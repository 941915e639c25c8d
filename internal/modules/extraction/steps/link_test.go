package steps

import (
	"context"
	"reflect"
	"testing"

	"github.com/yungbote/dealgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
)

func seedGraphRows(t *testing.T, e *env) {
	t.Helper()
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm ID": "GP1", "Firm Name": "Acme Capital"})
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm ID": "GP2", "Firm Name": "Beta Partners"})

	e.raw(t, "funds.csv", types.DatasetFund, map[string]string{"Fund ID": "F1", "Fund Name": "Acme Fund I", "Firm ID": "GP1"})
	e.raw(t, "funds.csv", types.DatasetFund, map[string]string{"Fund ID": "F2", "Fund Name": "Beta Growth II", "Fund Manager": "Beta Partners"})
	e.raw(t, "funds.csv", types.DatasetFund, map[string]string{"Fund ID": "F3", "Fund Name": "Orphan Fund", "Fund Manager": "Unknown GP Holdings"})

	e.raw(t, "contacts.csv", types.DatasetContact, map[string]string{"Contact ID": "C1", "Full Name": "Jane Doe", "Firm ID": "GP1", "Job Title": "Partner"})
	e.raw(t, "contacts.csv", types.DatasetContact, map[string]string{"Contact ID": "C2", "Full Name": "John Roe", "Firm Name": "Beta Partners"})
	e.raw(t, "contacts.csv", types.DatasetContact, map[string]string{"Contact ID": "C3", "Full Name": "Max Moe", "Firm Name": "Nowhere Ltd"})

	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{
		"Deal ID":        "D1",
		"Investors":      "Acme Capital; A.C.M.E. Investors | Beta Partners\nMystery Ventures\nLLC",
		"Investor Funds": "Acme Fund I; Ghost Fund",
	})
}

func TestLinkFundManagersByIDThenName(t *testing.T) {
	e := newEnv(t)
	seedGraphRows(t, e)
	e.extractAll(t)

	out := e.link(t, LinkFundManager)
	if out.Linked != 2 || out.Unresolved != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}

	var rels []types.FirmManagesFund
	if err := e.db.Find(&rels).Error; err != nil {
		t.Fatalf("load links: %v", err)
	}
	methods := map[string]float64{}
	for _, r := range rels {
		methods[*r.ResolutionMethod] = r.ConfidenceScore
		if r.Role != "Manager" {
			t.Fatalf("unexpected role %q", r.Role)
		}
	}
	if methods[types.ResolutionID] != 1 || methods[types.ResolutionExact] != ExactNameConfidence {
		t.Fatalf("unexpected methods: %v", methods)
	}

	var f2 types.Fund
	if err := e.db.Where("source_id = ?", "F2").First(&f2).Error; err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if f2.ManagingFirmID == nil {
		t.Fatalf("F2 managing firm not set")
	}

	// A second pass finds nothing new.
	again := e.link(t, LinkFundManager)
	if again.Linked != 0 {
		t.Fatalf("rerun linked %d rows", again.Linked)
	}
}

func TestLinkEmploymentBySourceIDThenName(t *testing.T) {
	e := newEnv(t)
	seedGraphRows(t, e)
	e.extractAll(t)

	out := e.link(t, LinkPersonEmployment)
	if out.Linked != 2 || out.Unresolved != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	var jane types.Person
	if err := e.db.Where("source_id = ?", "C1").First(&jane).Error; err != nil {
		t.Fatalf("load person: %v", err)
	}
	var emp types.PersonEmployment
	if err := e.db.Where("person_id = ?", jane.ID).First(&emp).Error; err != nil {
		t.Fatalf("load employment: %v", err)
	}
	if emp.Title != "Partner" || !emp.IsCurrent || *emp.ResolutionMethod != types.ResolutionID {
		t.Fatalf("unexpected employment: %+v", emp)
	}
}

func TestLinkDealInvestorsSplitsAndResolves(t *testing.T) {
	e := newEnv(t)
	seedGraphRows(t, e)
	e.extractAll(t)

	dbc := dbctx.Context{Ctx: context.Background()}
	var acme types.Firm
	if err := e.db.Where("source_id = ?", "GP1").First(&acme).Error; err != nil {
		t.Fatalf("load firm: %v", err)
	}
	if _, err := e.set.Alias.UpsertFirmAliases(dbc, []*types.FirmAlias{{
		CanonicalFirmID:     acme.ID,
		AliasText:           "A.C.M.E. Investors",
		AliasTextNormalized: normalization.Name("A.C.M.E. Investors"),
		MatchMethod:         types.ResolutionProbabilistic,
		ConfidenceScore:     0.88,
	}}); err != nil {
		t.Fatalf("UpsertFirmAliases: %v", err)
	}

	out := e.link(t, LinkDealInvestorFirm)
	// Acme twice (exact and alias) counts once; the bare "LLC" is dropped.
	if out.Linked != 3 || out.Unresolved != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}

	var rows []types.DealInvestorFirm
	if err := e.db.Order("investor_firm_name_raw ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load investors: %v", err)
	}
	got := map[string]string{}
	for _, r := range rows {
		got[r.InvestorFirmNameRaw] = r.ResolutionMethod
		switch r.InvestorFirmNameRaw {
		case "Acme Capital":
			if r.InvestorFirmID == nil || *r.InvestorFirmID != acme.ID || r.ConfidenceScore != ExactNameConfidence {
				t.Fatalf("unexpected acme row: %+v", r)
			}
		case "Mystery Ventures":
			if r.InvestorFirmID != nil || r.ConfidenceScore != 0 {
				t.Fatalf("unresolved row should have no firm: %+v", r)
			}
		}
	}
	want := map[string]string{
		"Acme Capital":     types.ResolutionExact,
		"Beta Partners":    types.ResolutionExact,
		"Mystery Ventures": types.ResolutionUnresolved,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected investor rows: %v", got)
	}

	funds := e.link(t, LinkDealInvestorFund)
	if funds.Linked != 2 || funds.Unresolved != 1 {
		t.Fatalf("unexpected fund output: %+v", funds)
	}

	// Rerunning keeps one row per deal and raw name.
	e.link(t, LinkDealInvestorFirm)
	var n int64
	e.db.Model(&types.DealInvestorFirm{}).Count(&n)
	if n != 3 {
		t.Fatalf("rerun duplicated investor rows: %d", n)
	}
}

func TestLinkRejectsUnknownKind(t *testing.T) {
	e := newEnv(t)
	if _, err := Link(context.Background(), e.linkDeps(t), LinkInput{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := Link(context.Background(), LinkDeps{Log: testutil.Logger(t)}, LinkInput{Kind: LinkFundManager}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
