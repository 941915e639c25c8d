package canonical

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type FirmRepo interface {
	// Upsert inserts or merges on (source_system, source_id). Incoming nulls never
	// overwrite stored values.
	Upsert(dbc dbctx.Context, rows []*types.Firm) (int64, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Firm, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Firm, error)
	IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error)
	IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Firm, error)
	List(dbc dbctx.Context, q db.ListQuery) ([]*types.Firm, int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type firmRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store store[types.Firm]
}

func NewFirmRepo(db *gorm.DB, baseLog *logger.Logger) FirmRepo {
	return &firmRepo{
		db:    db,
		log:   baseLog.With("repo", "FirmRepo"),
		store: store[types.Firm]{table: "firm"},
	}
}

var firmRequired = []string{"name", "name_normalized"}

var firmOptional = []string{
	"firm_type", "institution_type",
	"headquarters_city", "headquarters_state", "headquarters_country", "headquarters_region",
	"aum_usd", "aum_raw", "dry_powder_usd",
	"website", "description", "year_founded", "is_listed", "ticker",
	"source_file", "source_sheet", "source_row_number", "run_id",
}

func (r *firmRepo) Upsert(dbc dbctx.Context, rows []*types.Firm) (int64, error) {
	set := append(db.NonEmptyAssignments("firm", firmRequired), db.CoalesceAssignments("firm", firmOptional)...)
	return r.store.upsert(dbc.Or(r.db), rows, set)
}

func (r *firmRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Firm, error) {
	return r.store.getByID(dbc.Or(r.db), id)
}

func (r *firmRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Firm, error) {
	return r.store.getByIDs(dbc.Or(r.db), ids)
}

func (r *firmRepo) IDsBySourceIDs(dbc dbctx.Context, sourceIDs []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "source_id", sourceIDs)
}

func (r *firmRepo) IDsByNormalizedNames(dbc dbctx.Context, names []string) (map[string]uuid.UUID, error) {
	return r.store.idsBy(dbc.Or(r.db), "name_normalized", names)
}

func (r *firmRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Firm, error) {
	return r.store.page(dbc.Or(r.db), after, limit)
}

func (r *firmRepo) List(dbc dbctx.Context, q db.ListQuery) ([]*types.Firm, int64, error) {
	return r.store.list(dbc.Or(r.db), q)
}

func (r *firmRepo) Count(dbc dbctx.Context) (int64, error) {
	return r.store.count(dbc.Or(r.db))
}
