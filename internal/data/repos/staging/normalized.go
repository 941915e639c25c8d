package staging

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// NormalizedRepo owns the derived normalized_* tables. They are rebuilt on
// every transform, so there is no update path.
type NormalizedRepo interface {
	Reset(dbc dbctx.Context) error

	CreateFirms(dbc dbctx.Context, rows []*types.NormalizedFirm) error
	CreateFunds(dbc dbctx.Context, rows []*types.NormalizedFund) error
	CreateContacts(dbc dbctx.Context, rows []*types.NormalizedContact) error
	CreateDeals(dbc dbctx.Context, rows []*types.NormalizedDeal) error

	// *Groups return every row for the next `limit` source ids after `after`,
	// ordered by source id then source row number, plus the last id returned.
	// An empty cursor means the table is exhausted.
	FirmGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedFirm, string, error)
	FundGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedFund, string, error)
	ContactGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedContact, string, error)
	DealGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedDeal, string, error)

	Counts(dbc dbctx.Context) (map[string]int64, error)
}

type normalizedRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNormalizedRepo(db *gorm.DB, baseLog *logger.Logger) NormalizedRepo {
	return &normalizedRepo{
		db:  db,
		log: baseLog.With("repo", "NormalizedRepo"),
	}
}

var normalizedTables = []struct {
	kind  string
	model interface{}
}{
	{types.DatasetFirm, &types.NormalizedFirm{}},
	{types.DatasetFund, &types.NormalizedFund{}},
	{types.DatasetContact, &types.NormalizedContact{}},
	{types.DatasetDeal, &types.NormalizedDeal{}},
}

func (r *normalizedRepo) Reset(dbc dbctx.Context) error {
	t := dbc.Or(r.db)
	for _, nt := range normalizedTables {
		if err := t.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(nt.model).Error; err != nil {
			return fmt.Errorf("reset %s: %w", nt.kind, err)
		}
	}
	return nil
}

func (r *normalizedRepo) CreateFirms(dbc dbctx.Context, rows []*types.NormalizedFirm) error {
	return createInBatches(dbc.Or(r.db), rows)
}

func (r *normalizedRepo) CreateFunds(dbc dbctx.Context, rows []*types.NormalizedFund) error {
	return createInBatches(dbc.Or(r.db), rows)
}

func (r *normalizedRepo) CreateContacts(dbc dbctx.Context, rows []*types.NormalizedContact) error {
	return createInBatches(dbc.Or(r.db), rows)
}

func (r *normalizedRepo) CreateDeals(dbc dbctx.Context, rows []*types.NormalizedDeal) error {
	return createInBatches(dbc.Or(r.db), rows)
}

func (r *normalizedRepo) FirmGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedFirm, string, error) {
	return sourceGroups[types.NormalizedFirm](dbc.Or(r.db), "normalized_firm", "source_firm_id", after, limit)
}

func (r *normalizedRepo) FundGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedFund, string, error) {
	return sourceGroups[types.NormalizedFund](dbc.Or(r.db), "normalized_fund", "source_fund_id", after, limit)
}

func (r *normalizedRepo) ContactGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedContact, string, error) {
	return sourceGroups[types.NormalizedContact](dbc.Or(r.db), "normalized_contact", "source_contact_id", after, limit)
}

func (r *normalizedRepo) DealGroups(dbc dbctx.Context, after string, limit int) ([]*types.NormalizedDeal, string, error) {
	return sourceGroups[types.NormalizedDeal](dbc.Or(r.db), "normalized_deal", "source_deal_id", after, limit)
}

func (r *normalizedRepo) Counts(dbc dbctx.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(normalizedTables))
	t := dbc.Or(r.db)
	for _, nt := range normalizedTables {
		var n int64
		if err := t.Model(nt.model).Count(&n).Error; err != nil {
			return nil, err
		}
		out[nt.kind] = n
	}
	return out, nil
}

func createInBatches[T any](t *gorm.DB, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return t.CreateInBatches(rows, db.BatchSize(t)).Error
}

func sourceGroups[T any](t *gorm.DB, table, col string, after string, limit int) ([]*T, string, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []string
	if err := t.Table(table).
		Distinct(col).
		Where(col+" > ?", after).
		Order(col+" ASC").
		Limit(limit).
		Pluck(col, &ids).Error; err != nil {
		return nil, "", err
	}
	if len(ids) == 0 {
		return nil, "", nil
	}
	var out []*T
	if err := t.Table(table).
		Where(col+" IN ?", ids).
		Order(col + " ASC, source_row_number ASC").
		Find(&out).Error; err != nil {
		return nil, "", err
	}
	return out, ids[len(ids)-1], nil
}
