package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Staging
		// =========================
		&types.RawRecord{},
		&types.IngestionCheckpoint{},
		&types.NormalizedFirm{},
		&types.NormalizedFund{},
		&types.NormalizedContact{},
		&types.NormalizedDeal{},

		// =========================
		// Canonical entities
		// =========================
		&types.Firm{},
		&types.Fund{},
		&types.Person{},
		&types.Company{},
		&types.Deal{},

		// =========================
		// Relationships + aliases
		// =========================
		&types.FirmManagesFund{},
		&types.PersonEmployment{},
		&types.DealInvestorFirm{},
		&types.DealInvestorFund{},
		&types.DealTargetCompany{},
		&types.FirmAlias{},
		&types.FundAlias{},

		// =========================
		// Quality + derived
		// =========================
		&types.QuarantineRecord{},
		&types.CoInvestmentEdge{},
		&types.EntityDoc{},

		// =========================
		// Jobs
		// =========================
		&types.JobRun{},
	)
}

// EnsureIndexes adds PostgreSQL-only structures GORM tags cannot express.
// It is a no-op on SQLite.
func EnsureIndexes(db *gorm.DB) error {
	if IsSQLite(db) {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{"pg_trgm", `CREATE EXTENSION IF NOT EXISTS pg_trgm;`},
		{"ck_firm_ordering", `
			DO $$ BEGIN
				ALTER TABLE co_investment_edge ADD CONSTRAINT ck_firm_ordering CHECK (firm_a_id < firm_b_id);
			EXCEPTION WHEN duplicate_object THEN NULL; END $$;`},
		{"uq_deal_investor_firm_resolved", `
			CREATE UNIQUE INDEX IF NOT EXISTS uq_deal_investor_firm_resolved
			ON deal_investor_firm (deal_id, investor_firm_id)
			WHERE investor_firm_id IS NOT NULL;`},
		{"idx_firm_name_trgm", `
			CREATE INDEX IF NOT EXISTS idx_firm_name_trgm
			ON firm USING GIN (name_normalized gin_trgm_ops);`},
		{"idx_fund_name_trgm", `
			CREATE INDEX IF NOT EXISTS idx_fund_name_trgm
			ON fund USING GIN (name_normalized gin_trgm_ops);`},
		{"idx_company_name_trgm", `
			CREATE INDEX IF NOT EXISTS idx_company_name_trgm
			ON company USING GIN (name_normalized gin_trgm_ops);`},
		{"idx_fund_strategy_vintage", `
			CREATE INDEX IF NOT EXISTS idx_fund_strategy_vintage ON fund (strategy, vintage_year);`},
		{"idx_deal_date_type", `
			CREATE INDEX IF NOT EXISTS idx_deal_date_type ON deal (deal_date, deal_type);`},
		{"idx_entity_doc_text_trgm", `
			CREATE INDEX IF NOT EXISTS idx_entity_doc_text_trgm
			ON entity_doc USING GIN (lower(doc_text) gin_trgm_ops);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
