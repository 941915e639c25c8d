package canonical

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// InvestorRow is one resolved investor of one deal, with the deal facts the
// co-investment aggregation needs.
type InvestorRow struct {
	DealID          uuid.UUID
	FirmID          uuid.UUID
	DealValueUSD    *float64
	DealDate        *time.Time
	PrimaryIndustry *string
}

// LinkRepo writes relationship rows. Every create is insert-or-ignore, so a
// linking pass can be re-run without touching existing links.
type LinkRepo interface {
	CreateFirmManagesFund(dbc dbctx.Context, rows []*types.FirmManagesFund) (int64, error)
	CreatePersonEmployment(dbc dbctx.Context, rows []*types.PersonEmployment) (int64, error)
	CreateDealTargetCompany(dbc dbctx.Context, rows []*types.DealTargetCompany) (int64, error)
	CreateDealInvestorFirms(dbc dbctx.Context, rows []*types.DealInvestorFirm) (int64, error)
	CreateDealInvestorFunds(dbc dbctx.Context, rows []*types.DealInvestorFund) (int64, error)

	// PageUnresolvedInvestorFirms pages investor rows with no resolved firm, by id.
	PageUnresolvedInvestorFirms(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.DealInvestorFirm, error)
	// ResolveInvestorFirm fills a still-unresolved investor row. It reports whether
	// a row changed.
	ResolveInvestorFirm(dbc dbctx.Context, id, firmID uuid.UUID, method string, confidence float64) (bool, error)

	// ResolvedInvestorsByDeal returns resolved investor rows for the next dealLimit
	// deals after `after`, ordered by deal, plus the last deal id returned.
	ResolvedInvestorsByDeal(dbc dbctx.Context, after uuid.UUID, dealLimit int) ([]InvestorRow, uuid.UUID, error)

	InvestorFirmsForDeals(dbc dbctx.Context, dealIDs []uuid.UUID) ([]*types.DealInvestorFirm, error)
	InvestorFundsForDeals(dbc dbctx.Context, dealIDs []uuid.UUID) ([]*types.DealInvestorFund, error)
	EmploymentForFirm(dbc dbctx.Context, firmID uuid.UUID) ([]*types.PersonEmployment, error)
	EmploymentForPerson(dbc dbctx.Context, personID uuid.UUID) ([]*types.PersonEmployment, error)

	Counts(dbc dbctx.Context) (map[string]int64, error)
}

type linkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLinkRepo(db *gorm.DB, baseLog *logger.Logger) LinkRepo {
	return &linkRepo{
		db:  db,
		log: baseLog.With("repo", "LinkRepo"),
	}
}

func (r *linkRepo) CreateFirmManagesFund(dbc dbctx.Context, rows []*types.FirmManagesFund) (int64, error) {
	return createIgnoreDuplicates(dbc.Or(r.db), rows)
}

func (r *linkRepo) CreatePersonEmployment(dbc dbctx.Context, rows []*types.PersonEmployment) (int64, error) {
	return createIgnoreDuplicates(dbc.Or(r.db), rows)
}

func (r *linkRepo) CreateDealTargetCompany(dbc dbctx.Context, rows []*types.DealTargetCompany) (int64, error) {
	return createIgnoreDuplicates(dbc.Or(r.db), rows)
}

func (r *linkRepo) CreateDealInvestorFirms(dbc dbctx.Context, rows []*types.DealInvestorFirm) (int64, error) {
	return createIgnoreDuplicates(dbc.Or(r.db), rows)
}

func (r *linkRepo) CreateDealInvestorFunds(dbc dbctx.Context, rows []*types.DealInvestorFund) (int64, error) {
	return createIgnoreDuplicates(dbc.Or(r.db), rows)
}

func (r *linkRepo) PageUnresolvedInvestorFirms(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.DealInvestorFirm, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []*types.DealInvestorFirm
	if err := dbc.Or(r.db).
		Where("investor_firm_id IS NULL AND id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) ResolveInvestorFirm(dbc dbctx.Context, id, firmID uuid.UUID, method string, confidence float64) (bool, error) {
	res := dbc.Or(r.db).
		Model(&types.DealInvestorFirm{}).
		Where("id = ? AND investor_firm_id IS NULL", id).
		Updates(map[string]interface{}{
			"investor_firm_id":  firmID,
			"resolution_method": method,
			"confidence_score":  confidence,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		// The deal already lists this firm under another raw spelling.
		if db.IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *linkRepo) ResolvedInvestorsByDeal(dbc dbctx.Context, after uuid.UUID, dealLimit int) ([]InvestorRow, uuid.UUID, error) {
	if dealLimit <= 0 {
		dealLimit = 1000
	}
	t := dbc.Or(r.db)
	var dealIDs []uuid.UUID
	if err := t.Model(&types.DealInvestorFirm{}).
		Distinct("deal_id").
		Where("investor_firm_id IS NOT NULL AND deal_id > ?", after).
		Order("deal_id ASC").
		Limit(dealLimit).
		Pluck("deal_id", &dealIDs).Error; err != nil {
		return nil, uuid.Nil, err
	}
	if len(dealIDs) == 0 {
		return nil, uuid.Nil, nil
	}
	var out []InvestorRow
	for _, part := range chunkIDs(dealIDs) {
		var rows []InvestorRow
		if err := t.Table("deal_investor_firm AS dif").
			Select(`dif.deal_id AS deal_id, dif.investor_firm_id AS firm_id,
				d.deal_value_usd AS deal_value_usd, d.deal_date AS deal_date, d.primary_industry AS primary_industry`).
			Joins("JOIN deal d ON d.id = dif.deal_id").
			Where("dif.investor_firm_id IS NOT NULL AND dif.deal_id IN ?", part).
			Order("dif.deal_id ASC, dif.investor_firm_id ASC").
			Scan(&rows).Error; err != nil {
			return nil, uuid.Nil, err
		}
		out = append(out, rows...)
	}
	return out, dealIDs[len(dealIDs)-1], nil
}

func (r *linkRepo) InvestorFirmsForDeals(dbc dbctx.Context, dealIDs []uuid.UUID) ([]*types.DealInvestorFirm, error) {
	var out []*types.DealInvestorFirm
	for _, part := range chunkIDs(dealIDs) {
		var rows []*types.DealInvestorFirm
		if err := dbc.Or(r.db).
			Where("deal_id IN ?", part).
			Order("deal_id ASC, investor_firm_name_raw ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (r *linkRepo) InvestorFundsForDeals(dbc dbctx.Context, dealIDs []uuid.UUID) ([]*types.DealInvestorFund, error) {
	var out []*types.DealInvestorFund
	for _, part := range chunkIDs(dealIDs) {
		var rows []*types.DealInvestorFund
		if err := dbc.Or(r.db).
			Where("deal_id IN ?", part).
			Order("deal_id ASC, investor_fund_name_raw ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (r *linkRepo) EmploymentForFirm(dbc dbctx.Context, firmID uuid.UUID) ([]*types.PersonEmployment, error) {
	var out []*types.PersonEmployment
	if err := dbc.Or(r.db).Where("firm_id = ?", firmID).Order("title ASC, person_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) EmploymentForPerson(dbc dbctx.Context, personID uuid.UUID) ([]*types.PersonEmployment, error) {
	var out []*types.PersonEmployment
	if err := dbc.Or(r.db).Where("person_id = ?", personID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) Counts(dbc dbctx.Context) (map[string]int64, error) {
	models := map[string]interface{}{
		"firm_manages_fund":   &types.FirmManagesFund{},
		"person_employment":   &types.PersonEmployment{},
		"deal_target_company": &types.DealTargetCompany{},
		"deal_investor_firm":  &types.DealInvestorFirm{},
		"deal_investor_fund":  &types.DealInvestorFund{},
	}
	out := make(map[string]int64, len(models)+1)
	t := dbc.Or(r.db)
	for name, m := range models {
		var n int64
		if err := t.Model(m).Count(&n).Error; err != nil {
			return nil, err
		}
		out[name] = n
	}
	var unresolved int64
	if err := t.Model(&types.DealInvestorFirm{}).Where("investor_firm_id IS NULL").Count(&unresolved).Error; err != nil {
		return nil, err
	}
	out["deal_investor_firm_unresolved"] = unresolved
	return out, nil
}

// createIgnoreDuplicates uses an untargeted ON CONFLICT DO NOTHING so that every
// unique index on the table is honoured, not just one.
func createIgnoreDuplicates[T any](t *gorm.DB, rows []*T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var total int64
	size := db.BatchSize(t)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		res := t.Clauses(clause.OnConflict{DoNothing: true}).Create(rows[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}
