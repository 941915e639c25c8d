package canonical

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type PersonRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.Person) (int64, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Person, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Person, error)
	Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error)
	// PageWithEmployerRef pages persons whose source row named an employer.
	PageWithEmployerRef(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error)
	// PageWithoutEmployment pages persons that name an employer but have no employment link.
	PageWithoutEmployment(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error)
	List(dbc dbctx.Context, q db.ListQuery) ([]*types.Person, int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type personRepo struct {
	db    *gorm.DB
	log   *logger.Logger
	store store[types.Person]
}

func NewPersonRepo(db *gorm.DB, baseLog *logger.Logger) PersonRepo {
	return &personRepo{
		db:    db,
		log:   baseLog.With("repo", "PersonRepo"),
		store: store[types.Person]{table: "person"},
	}
}

var personRequired = []string{"full_name", "name_normalized"}

var personOptional = []string{
	"first_name", "last_name", "email", "phone", "linkedin_url",
	"title", "seniority_level", "location_city", "location_country",
	"firm_source_id", "firm_name",
	"source_file", "source_sheet", "source_row_number", "run_id",
}

const employerRef = "(firm_source_id IS NOT NULL OR firm_name IS NOT NULL)"

func (r *personRepo) Upsert(dbc dbctx.Context, rows []*types.Person) (int64, error) {
	set := append(db.NonEmptyAssignments("person", personRequired), db.CoalesceAssignments("person", personOptional)...)
	return r.store.upsert(dbc.Or(r.db), rows, set)
}

func (r *personRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Person, error) {
	return r.store.getByID(dbc.Or(r.db), id)
}

func (r *personRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Person, error) {
	return r.store.getByIDs(dbc.Or(r.db), ids)
}

func (r *personRepo) Page(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error) {
	return r.store.page(dbc.Or(r.db), after, limit)
}

func (r *personRepo) PageWithEmployerRef(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error) {
	return r.store.page(dbc.Or(r.db), after, limit, db.Where(employerRef))
}

func (r *personRepo) PageWithoutEmployment(dbc dbctx.Context, after uuid.UUID, limit int) ([]*types.Person, error) {
	return r.store.page(dbc.Or(r.db), after, limit,
		db.Where(employerRef),
		db.Where("NOT EXISTS (SELECT 1 FROM person_employment pe WHERE pe.person_id = person.id)"),
	)
}

func (r *personRepo) List(dbc dbctx.Context, q db.ListQuery) ([]*types.Person, int64, error) {
	return r.store.list(dbc.Or(r.db), q)
}

func (r *personRepo) Count(dbc dbctx.Context) (int64, error) {
	return r.store.count(dbc.Or(r.db))
}
