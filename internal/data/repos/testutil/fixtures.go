package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/normalization"
)

func PtrString(s string) *string { return &s }

func PtrFloat(f float64) *float64 { return &f }

func PtrInt(i int) *int { return &i }

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }

func PtrTime(t time.Time) *time.Time { return &t }

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func SeedFirm(tb testing.TB, tx *gorm.DB, sourceID, name string) *types.Firm {
	tb.Helper()
	f := &types.Firm{
		SourceSystem:   types.DefaultSourceSystem,
		SourceID:       sourceID,
		Name:           name,
		NameNormalized: normalization.Name(name),
	}
	if err := tx.Create(f).Error; err != nil {
		tb.Fatalf("seed firm: %v", err)
	}
	return f
}

func SeedFund(tb testing.TB, tx *gorm.DB, sourceID, name string, managerSourceID *string) *types.Fund {
	tb.Helper()
	f := &types.Fund{
		SourceSystem:        types.DefaultSourceSystem,
		SourceID:            sourceID,
		Name:                name,
		NameNormalized:      normalization.Name(name),
		ManagerFirmSourceID: managerSourceID,
	}
	if err := tx.Create(f).Error; err != nil {
		tb.Fatalf("seed fund: %v", err)
	}
	return f
}

func SeedPerson(tb testing.TB, tx *gorm.DB, sourceID, fullName string, firmSourceID *string) *types.Person {
	tb.Helper()
	p := &types.Person{
		SourceSystem:   types.DefaultSourceSystem,
		SourceID:       sourceID,
		FullName:       fullName,
		NameNormalized: normalization.Name(fullName),
		FirmSourceID:   firmSourceID,
	}
	if err := tx.Create(p).Error; err != nil {
		tb.Fatalf("seed person: %v", err)
	}
	return p
}

func SeedCompany(tb testing.TB, tx *gorm.DB, sourceID, name string) *types.Company {
	tb.Helper()
	c := &types.Company{
		SourceSystem:   types.DefaultSourceSystem,
		SourceID:       sourceID,
		Name:           name,
		NameNormalized: normalization.Name(name),
	}
	if err := tx.Create(c).Error; err != nil {
		tb.Fatalf("seed company: %v", err)
	}
	return c
}

func SeedDeal(tb testing.TB, tx *gorm.DB, sourceID string, date *time.Time, valueUSD *float64) *types.Deal {
	tb.Helper()
	d := &types.Deal{
		SourceSystem: types.DefaultSourceSystem,
		SourceID:     sourceID,
		DealDate:     date,
		DealValueUSD: valueUSD,
	}
	if err := tx.Create(d).Error; err != nil {
		tb.Fatalf("seed deal: %v", err)
	}
	return d
}

// SeedInvestor links a firm to a deal as a resolved investor. A nil firmID
// seeds an unresolved row.
func SeedInvestor(tb testing.TB, tx *gorm.DB, dealID uuid.UUID, rawName string, firmID *uuid.UUID) *types.DealInvestorFirm {
	tb.Helper()
	row := &types.DealInvestorFirm{
		DealID:              dealID,
		InvestorFirmNameRaw: rawName,
		InvestorFirmID:      firmID,
		ResolutionMethod:    types.ResolutionExact,
		ConfidenceScore:     0.9,
	}
	if firmID == nil {
		row.ResolutionMethod = types.ResolutionUnresolved
		row.ConfidenceScore = 0
	}
	if err := tx.Create(row).Error; err != nil {
		tb.Fatalf("seed deal investor: %v", err)
	}
	return row
}

func SeedRaw(tb testing.TB, tx *gorm.DB, runID, dataset string, rowNumber int, data map[string]string) *types.RawRecord {
	tb.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		tb.Fatalf("marshal raw data: %v", err)
	}
	r := &types.RawRecord{
		RunID:           runID,
		SourceFile:      dataset + ".csv",
		SourceSheet:     dataset,
		SourceRowNumber: rowNumber,
		Dataset:         dataset,
		RawData:         datatypes.JSON(b),
	}
	if err := tx.Create(r).Error; err != nil {
		tb.Fatalf("seed raw record: %v", err)
	}
	return r
}
