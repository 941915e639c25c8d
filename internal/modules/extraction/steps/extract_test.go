package steps

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

func TestExtractMergesRowsLaterNonNullWins(t *testing.T) {
	e := newEnv(t)
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{
		"Firm ID": "GP1", "Firm Name": "Acme", "Website": "acme.example", "City": "Boston",
	})
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{
		"Firm ID": "GP1", "Firm Name": "Acme Capital", "City": "New York", "AUM (USD mn)": "n/a",
	})
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{
		"Firm ID": "GP2", "Firm Name": "Beta Partners", "Firm Type": "Venture Capital",
	})
	e.raw(t, "lp_profiles.csv", types.DatasetFirm, map[string]string{
		"Firm ID": "LP1", "Firm Name": "State Pension",
	})

	out := e.extractAll(t)
	if got := out[types.KindFirm]; got.Entities != 3 || got.DuplicateSourceIDs != 1 {
		t.Fatalf("unexpected firm output: %+v", got)
	}

	var firms []types.Firm
	if err := e.db.Order("source_id ASC").Find(&firms).Error; err != nil {
		t.Fatalf("load firms: %v", err)
	}
	if len(firms) != 3 {
		t.Fatalf("expected 3 firms, got %d", len(firms))
	}
	acme, beta, lp := firms[0], firms[1], firms[2]
	if acme.Name != "Acme Capital" || acme.NameNormalized != "acme" {
		t.Fatalf("later name should win: %q", acme.Name)
	}
	if acme.HeadquartersCity == nil || *acme.HeadquartersCity != "New York" {
		t.Fatalf("later city should win: %v", acme.HeadquartersCity)
	}
	if acme.Website == nil || *acme.Website != "acme.example" {
		t.Fatalf("earlier website should survive a null: %v", acme.Website)
	}
	if acme.AumUSD != nil {
		t.Fatalf("placeholder aum should stay null: %v", *acme.AumUSD)
	}
	if acme.FirmType == nil || *acme.FirmType != "GP" {
		t.Fatalf("untyped firm should default to GP: %v", acme.FirmType)
	}
	if acme.SourceRowNumber == nil || *acme.SourceRowNumber != 3 {
		t.Fatalf("provenance should point at the last row: %v", acme.SourceRowNumber)
	}
	if beta.FirmType == nil || *beta.FirmType != "Venture Capital" {
		t.Fatalf("sourced firm type should be kept: %v", beta.FirmType)
	}
	if lp.FirmType == nil || *lp.FirmType != "LP" {
		t.Fatalf("lp export should mark the firm LP: %v", lp.FirmType)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm ID": "GP1", "Firm Name": "Acme"})
	e.raw(t, "contacts.csv", types.DatasetContact, map[string]string{"Contact ID": "C1", "Full Name": "Jane Doe", "Firm ID": "GP1"})

	e.extractAll(t)
	e.extractAll(t)

	var firms, people int64
	e.db.Model(&types.Firm{}).Count(&firms)
	e.db.Model(&types.Person{}).Count(&people)
	if firms != 1 || people != 1 {
		t.Fatalf("rerun duplicated entities: firms=%d people=%d", firms, people)
	}
	var p types.Person
	if err := e.db.First(&p).Error; err != nil {
		t.Fatalf("load person: %v", err)
	}
	if p.NameNormalized != "jane doe" || p.FirmSourceID == nil || *p.FirmSourceID != "GP1" {
		t.Fatalf("unexpected person: %+v", p)
	}
}

func TestExtractCompaniesFromDealTargets(t *testing.T) {
	e := newEnv(t)
	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{
		"Deal ID": "D1", "Portfolio Company": "Widget Co", "Portfolio Company ID": "C1", "Industry": "Software",
	})
	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{
		"Deal ID": "D2", "Portfolio Company": "Widget Co", "Industry": "SaaS",
	})
	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{
		"Deal ID": "D3", "Portfolio Company": "Gizmo Inc",
	})
	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{"Deal ID": "D4"})

	out := e.extractAll(t)
	if out[types.KindCompany].Entities != 2 || out[types.KindDeal].Entities != 4 {
		t.Fatalf("unexpected output: company=%+v deal=%+v", out[types.KindCompany], out[types.KindDeal])
	}

	var companies []types.Company
	if err := e.db.Find(&companies).Error; err != nil {
		t.Fatalf("load companies: %v", err)
	}
	bySource := map[string]types.Company{}
	for _, c := range companies {
		bySource[c.SourceID] = c
	}
	widget, ok := bySource["C1"]
	if !ok {
		t.Fatalf("id-less mention should reuse the sourced id: %+v", companies)
	}
	if widget.PrimaryIndustry == nil || *widget.PrimaryIndustry != "SaaS" {
		t.Fatalf("later deal row should win: %v", widget.PrimaryIndustry)
	}
	sum := md5.Sum([]byte("gizmo"))
	if _, ok := bySource[hex.EncodeToString(sum[:])]; !ok {
		t.Fatalf("company without id should be keyed by name hash: %+v", companies)
	}

	link := e.link(t, LinkDealTargetCompany)
	if link.Linked != 3 || link.Unresolved != 0 {
		t.Fatalf("unexpected target link output: %+v", link)
	}
	var d2 types.Deal
	if err := e.db.Where("source_id = ?", "D2").First(&d2).Error; err != nil {
		t.Fatalf("load deal: %v", err)
	}
	if d2.TargetCompanyID == nil || *d2.TargetCompanyID != widget.ID {
		t.Fatalf("D2 should target the sourced company: %v", d2.TargetCompanyID)
	}
	var rel types.DealTargetCompany
	if err := e.db.Where("deal_id = ?", d2.ID).First(&rel).Error; err != nil {
		t.Fatalf("load target link: %v", err)
	}
	if rel.ConfidenceScore != TargetCompanyConfidence {
		t.Fatalf("unexpected confidence: %v", rel.ConfidenceScore)
	}
}

func TestCompanySourceID(t *testing.T) {
	id := "C9"
	name := "The Widget Company"
	if got := CompanySourceID(&id, &name); got != "C9" {
		t.Fatalf("sourced id should win, got %q", got)
	}
	sum := md5.Sum([]byte("widget"))
	if got := CompanySourceID(nil, &name); got != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected hash key %q", got)
	}
	blank := "  "
	if got := CompanySourceID(nil, &blank); got != "" {
		t.Fatalf("blank name should give no key, got %q", got)
	}
}

func TestExtractRejectsUnknownKind(t *testing.T) {
	e := newEnv(t)
	_, err := Extract(context.Background(), e.extractDeps(t), ExtractInput{Kind: "galaxy"})
	if !errors.Is(err, dgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
