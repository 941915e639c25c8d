package canonical

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type DealRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.Deal) (int64, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Deal, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Deal, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Deal, error)
	SetTargetCompany(dbc dbctx.Context, dealID, companyID uuid.UUID) error
	// ListShared returns deals where both firms are resolved investors, newest first.
	ListShared(dbc dbctx.Context, firmA, firmB uuid.UUID, limit int) ([]*types.Deal, error)
	// ListByInvestor returns deals a firm is a resolved investor in, newest first.
	ListByInvestor(dbc dbctx.Context, firmID uuid.UUID, limit int) ([]*types.Deal, error)
	List(dbc dbctx.Context, q db.ListQuery) ([]*types.Deal, int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type dealRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store store[types.Deal]
}

func NewDealRepo(db *gorm.DB, baseLog *logger.Logger) DealRepo {
	return &dealRepo{
		db:    db,
		log:   baseLog.With("repo", "DealRepo"),
		store: store[types.Deal]{table: "deal"},
	}
}

var dealOptional = []string{
	"target_company_name", "target_company_source_id",
	"deal_type", "deal_date", "deal_value_usd", "deal_value_raw", "stage", "deal_status",
	"primary_industry", "secondary_industry", "country", "region",
	"investor_names_raw", "fund_names_raw",
	"source_file", "source_sheet", "source_row_number", "run_id",
}

func (r *dealRepo) Upsert(dbc dbctx.Context, rows []*types.Deal) (int64, error) {
	return r.store.upsert(dbc.Or(r.db), rows, db.CoalesceAssignments("deal", dealOptional))
}

func (r *dealRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Deal, error) {
	return r.store.getByID(dbc.Or(r.db), id)
}

func (r *dealRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Deal, error) {
	return r.store.getByIDs(dbc.Or(r.db), ids)
}

func (r *dealRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Deal, error) {
	return r.store.page(dbc.Or(r.db), after, limit)
}

func (r *dealRepo) SetTargetCompany(dbc dbctx.Context, dealID, companyID uuid.UUID) error {
	return r.store.setColumn(dbc.Or(r.db), dealID, "target_company_id", companyID)
}

func (r *dealRepo) ListShared(dbc dbctx.Context, firmA, firmB uuid.UUID, limit int) ([]*types.Deal, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Deal
	if err := dbc.Or(r.db).
		Where("id IN (SELECT deal_id FROM deal_investor_firm WHERE investor_firm_id = ?)", firmA).
		Where("id IN (SELECT deal_id FROM deal_investor_firm WHERE investor_firm_id = ?)", firmB).
		Order("deal_date IS NULL, deal_date DESC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dealRepo) ListByInvestor(dbc dbctx.Context, firmID uuid.UUID, limit int) ([]*types.Deal, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Deal
	if err := dbc.Or(r.db).
		Where("id IN (SELECT deal_id FROM deal_investor_firm WHERE investor_firm_id = ?)", firmID).
		Order("deal_date IS NULL, deal_date DESC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dealRepo) List(dbc dbctx.Context, q db.ListQuery) ([]*types.Deal, int64, error) {
	return r.store.list(dbc.Or(r.db), q)
}

func (r *dealRepo) Count(dbc dbctx.Context) (int64, error) {
	return r.store.count(dbc.Or(r.db))
}
