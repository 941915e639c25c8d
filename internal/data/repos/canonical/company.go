package canonical

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type CompanyRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.Company) (int64, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Company, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Company, error)
	IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error)
	IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Company, error)
	List(dbc dbctx.Context, q db.ListQuery) ([]*types.Company, int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type companyRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store store[types.Company]
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return &companyRepo{
		db:    db,
		log:   baseLog.With("repo", "CompanyRepo"),
		store: store[types.Company]{table: "company"},
	}
}

var companyRequired = []string{"name", "name_normalized"}

var companyOptional = []string{
	"website", "description", "city", "country", "region",
	"primary_industry", "secondary_industry", "status",
	"source_file", "source_sheet", "source_row_number", "run_id",
}

func (r *companyRepo) Upsert(dbc dbctx.Context, rows []*types.Company) (int64, error) {
	set := append(db.NonEmptyAssignments("company", companyRequired), db.CoalesceAssignments("company", companyOptional)...)
	return r.store.upsert(dbc.Or(r.db), rows, set)
}

func (r *companyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Company, error) {
	return r.store.getByID(dbc.Or(r.db), id)
}

func (r *companyRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Company, error) {
	return r.store.getByIDs(dbc.Or(r.db), ids)
}

func (r *companyRepo) IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "source_id", sourceIDs)
}

func (r *companyRepo) IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "name_normalized", names)
}

func (r *companyRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Company, error) {
	return r.store.page(dbc.Or(r.db), after, limit)
}

func (r *companyRepo) List(dbc dbctx.Context, q db.ListQuery) ([]*types.Company, int64, error) {
	return r.store.list(dbc.Or(r.db), q)
}

func (r *companyRepo) Count(dbc dbctx.Context) (int64, error) {
	return r.store.count(dbc.Or(r.db))
}
