package steps

import (
	"context"
	"errors"
	"testing"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

func TestTransformScalesDenominatedColumns(t *testing.T) {
	e := newEnv(t)
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{
		"Firm ID":             "GP1",
		"Firm Name":           "  Acme Capital ",
		"AUM (USD mn)":        "1,500",
		"Dry Powder (USD mn)": "250.5",
		"Year Founded":        "1998",
	})
	e.raw(t, "funds.csv", types.DatasetFund, map[string]string{
		"Fund ID":            "F1",
		"Fund Name":          "Acme Fund I",
		"Firm ID":            "GP1",
		"Fund Manager":       "Acme Capital",
		"Fund Size (USD mn)": "400",
		"Vintage":            "2015",
		"Net IRR (%)":        "12.5%",
	})
	e.raw(t, "deals.csv", types.DatasetDeal, map[string]string{
		"Deal ID":                   "D1",
		"Deal Size (USD mn)":        "75",
		"Deal Date":                 "2021-03-04",
		"Portfolio Company":         "Widget Co",
		"Portfolio Company Country": "US",
		"Country":                   "GB",
		"Investors":                 "Acme Capital; Beta",
	})

	out, err := Transform(context.Background(), e.transformDeps(t), TransformInput{})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.RawRecords != 3 || out.Rows[types.DatasetFirm] != 1 || out.Rows[types.DatasetFund] != 1 || out.Rows[types.DatasetDeal] != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}

	var firm types.NormalizedFirm
	if err := e.db.First(&firm).Error; err != nil {
		t.Fatalf("load firm: %v", err)
	}
	if firm.FirmName != "Acme Capital" || firm.FirmNameNormalized != "acme" {
		t.Fatalf("unexpected firm name: %q / %q", firm.FirmName, firm.FirmNameNormalized)
	}
	if firm.AumUSD == nil || *firm.AumUSD != 1.5e9 || firm.AumRaw == nil || *firm.AumRaw != "1,500" {
		t.Fatalf("unexpected aum: %v %v", firm.AumUSD, firm.AumRaw)
	}
	if firm.DryPowderUSD == nil || *firm.DryPowderUSD != 250.5e6 {
		t.Fatalf("unexpected dry powder: %v", firm.DryPowderUSD)
	}
	if firm.YearFounded == nil || *firm.YearFounded != 1998 || firm.SourceType != "gp" {
		t.Fatalf("unexpected firm row: %+v", firm)
	}

	var fund types.NormalizedFund
	if err := e.db.First(&fund).Error; err != nil {
		t.Fatalf("load fund: %v", err)
	}
	if fund.FundSizeUSD == nil || *fund.FundSizeUSD != 400e6 {
		t.Fatalf("unexpected fund size: %v", fund.FundSizeUSD)
	}
	if fund.ManagerFirmID == nil || *fund.ManagerFirmID != "GP1" || fund.ManagerFirmName == nil || *fund.ManagerFirmName != "Acme Capital" {
		t.Fatalf("unexpected manager reference: %+v", fund)
	}
	if fund.VintageYear == nil || *fund.VintageYear != 2015 {
		t.Fatalf("unexpected vintage: %v", fund.VintageYear)
	}

	var deal types.NormalizedDeal
	if err := e.db.First(&deal).Error; err != nil {
		t.Fatalf("load deal: %v", err)
	}
	if deal.DealValueUSD == nil || *deal.DealValueUSD != 75e6 {
		t.Fatalf("unexpected deal value: %v", deal.DealValueUSD)
	}
	if deal.Country == nil || *deal.Country != "US" {
		t.Fatalf("company country should win over deal country: %v", deal.Country)
	}
	if deal.DealDate == nil || deal.DealDate.Year() != 2021 || deal.DealDate.Day() != 4 {
		t.Fatalf("unexpected deal date: %v", deal.DealDate)
	}
	if deal.InvestorNamesRaw == nil || *deal.InvestorNamesRaw != "Acme Capital; Beta" {
		t.Fatalf("unexpected investors: %v", deal.InvestorNamesRaw)
	}
}

func TestTransformDetectsDatasetAndSkipsUnusableRows(t *testing.T) {
	e := newEnv(t)
	// Dataset unknown at ingestion; the deal id column decides.
	e.raw(t, "export.csv", types.DatasetUnknown, map[string]string{"Deal ID": "D9", "Stage": "Series A"})
	// Firm rows need both an id and a name.
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm ID": "GP1"})
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm Name": "Nameless"})
	// Nothing identifies this row.
	e.raw(t, "export.csv", types.DatasetUnknown, map[string]string{"Colour": "blue"})
	// Contacts without an id are keyed by sheet and row.
	e.raw(t, "contacts.csv", types.DatasetContact, map[string]string{"First Name": "Jane", "Last Name": "Doe"})

	out, err := Transform(context.Background(), e.transformDeps(t), TransformInput{})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Rows[types.DatasetDeal] != 1 || out.Rows[types.DatasetFirm] != 0 || out.Rows[types.DatasetContact] != 1 {
		t.Fatalf("unexpected rows: %+v", out.Rows)
	}
	if out.Skipped[types.DatasetFirm] != 2 || out.Unknown != 1 {
		t.Fatalf("unexpected skips: skipped=%v unknown=%d", out.Skipped, out.Unknown)
	}

	var contact types.NormalizedContact
	if err := e.db.First(&contact).Error; err != nil {
		t.Fatalf("load contact: %v", err)
	}
	if contact.FullName != "Jane Doe" || contact.SourceContactID != "Sheet1#6" {
		t.Fatalf("unexpected contact: %q %q", contact.FullName, contact.SourceContactID)
	}
}

func TestTransformRebuildsFromScratch(t *testing.T) {
	e := newEnv(t)
	e.raw(t, "firms.csv", types.DatasetFirm, map[string]string{"Firm ID": "GP1", "Firm Name": "Acme"})

	for i := 0; i < 2; i++ {
		if _, err := Transform(context.Background(), e.transformDeps(t), TransformInput{}); err != nil {
			t.Fatalf("Transform %d: %v", i, err)
		}
	}
	var n int64
	if err := e.db.Model(&types.NormalizedFirm{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("expected one normalized firm after rerun, got %d (%v)", n, err)
	}
}

func TestTransformRequiresDeps(t *testing.T) {
	_, err := Transform(context.Background(), TransformDeps{}, TransformInput{})
	if !errors.Is(err, dgerrors.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
