package canonical

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type FundRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.Fund) (int64, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Fund, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Fund, error)
	IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error)
	IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Fund, error)
	// PageUnmanaged pages funds that carry a manager reference but no managing firm yet.
	PageUnmanaged(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Fund, error)
	SetManagingFirm(dbc dbctx.Context, fundID, firmID uuid.UUID) error
	ListByManagingFirm(dbc dbctx.Context, firmID uuid.UUID) ([]*types.Fund, error)
	List(dbc dbctx.Context, q db.ListQuery) ([]*types.Fund, int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type fundRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store store[types.Fund]
}

func NewFundRepo(db *gorm.DB, baseLog *logger.Logger) FundRepo {
	return &fundRepo{
		db:    db,
		log:   baseLog.With("repo", "FundRepo"),
		store: store[types.Fund]{table: "fund"},
	}
}

var fundRequired = []string{"name", "name_normalized"}

var fundOptional = []string{
	"manager_firm_source_id", "manager_firm_name",
	"vintage_year", "fund_size_usd", "fund_size_raw", "target_size_usd", "currency",
	"strategy", "sub_strategy", "asset_class", "status",
	"domicile_country", "geography_focus", "sector_focus",
	"first_close_date", "final_close_date", "irr", "tvpi", "dpi",
	"source_file", "source_sheet", "source_row_number", "run_id",
}

func (r *fundRepo) Upsert(dbc dbctx.Context, rows []*types.Fund) (int64, error) {
	set := append(db.NonEmptyAssignments("fund", fundRequired), db.CoalesceAssignments("fund", fundOptional)...)
	return r.store.upsert(dbc.Or(r.db), rows, set)
}

func (r *fundRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Fund, error) {
	return r.store.getByID(dbc.Or(r.db), id)
}

func (r *fundRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Fund, error) {
	return r.store.getByIDs(dbc.Or(r.db), ids)
}

func (r *fundRepo) IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "source_id", sourceIDs)
}

func (r *fundRepo) IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "name_normalized", names)
}

func (r *fundRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Fund, error) {
	return r.store.page(dbc.Or(r.db), after, limit)
}

func (r *fundRepo) PageUnmanaged(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Fund, error) {
	return r.store.page(dbc.Or(r.db), after, limit,
		db.Where("managing_firm_id IS NULL"),
		db.Where("(manager_firm_source_id IS NOT NULL OR manager_firm_name IS NOT NULL)"),
	)
}

func (r *fundRepo) SetManagingFirm(dbc dbctx.Context, fundID, firmID uuid.UUID) error {
	return r.store.setColumn(dbc.Or(r.db), fundID, "managing_firm_id", firmID)
}

func (r *fundRepo) ListByManagingFirm(dbc dbctx.Context, firmID uuid.UUID) ([]*types.Fund, error) {
	var out []*types.Fund
	if err := dbc.Or(r.db).
		Where("managing_firm_id = ?", firmID).
		Order("vintage_year DESC, name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fundRepo) List(dbc dbctx.Context, q db.ListQuery) ([]*types.Fund, int64, error) {
	return r.store.list(dbc.Or(r.db), q)
}

func (r *fundRepo) Count(dbc dbctx.Context) (int64, error) {
	return r.store.count(dbc.Or(r.db))
}
