package canonical

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// AliasMatch is the best alias hit for one normalized name.
type AliasMatch struct {
	CanonicalID     uuid.UUID
	ConfidenceScore float64
}

type AliasRepo interface {
	// UpsertFirmAliases keeps the greater confidence when an alias already exists.
	UpsertFirmAliases(dbc dbctx.Context, rows []*types.FirmAlias) (int64, error)
	UpsertFundAliases(dbc dbctx.Context, rows []*types.FundAlias) (int64, error)
	// MatchFirms returns, per normalized name, the highest-confidence firm alias.
	MatchFirms(dbc dbctx.Context, names []string) (map[string]AliasMatch, error)
	MatchFunds(dbc dbctx.Context, names []string) (map[string]AliasMatch, error)
	ListFirmAliases(dbc dbctx.Context, firmID uuid.UUID) ([]*types.FirmAlias, error)
	Counts(dbc dbctx.Context) (map[string]int64, error)
}

type aliasRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAliasRepo(db *gorm.DB, baseLog *logger.Logger) AliasRepo {
	return &aliasRepo{
		db:  db,
		log: baseLog.With("repo", "AliasRepo"),
	}
}

func (r *aliasRepo) UpsertFirmAliases(dbc dbctx.Context, rows []*types.FirmAlias) (int64, error) {
	return upsertAliases(dbc.Or(r.db), "firm_alias", "canonical_firm_id", rows)
}

func (r *aliasRepo) UpsertFundAliases(dbc dbctx.Context, rows []*types.FundAlias) (int64, error) {
	return upsertAliases(dbc.Or(r.db), "fund_alias", "canonical_fund_id", rows)
}

func upsertAliases[T any](t *gorm.DB, table, idCol string, rows []*T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	greatest := fmt.Sprintf("%s(%s.confidence_score, excluded.confidence_score)", db.Greatest(t), table)
	var total int64
	size := db.BatchSize(t)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		res := t.Clauses(clause.OnConflict{
			Columns: db.Columns("alias_text_normalized", idCol),
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "confidence_score"}, Value: gorm.Expr(greatest)},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).Create(rows[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (r *aliasRepo) MatchFirms(dbc dbctx.Context, names []string) (map[string]AliasMatch, error) {
	return matchAliases(dbc.Or(r.db), "firm_alias", "canonical_firm_id", names)
}

func (r *aliasRepo) MatchFunds(dbc dbctx.Context, names []string) (map[string]AliasMatch, error) {
	return matchAliases(dbc.Or(r.db), "fund_alias", "canonical_fund_id", names)
}

type aliasHit struct {
	AliasTextNormalized string
	CanonicalID         uuid.UUID
	ConfidenceScore     float64
}

func matchAliases(t *gorm.DB, table, idCol string, names []string) (map[string]AliasMatch, error) {
	names = distinct(names)
	out := make(map[string]AliasMatch, len(names))
	for start := 0; start < len(names); start += lookupChunk {
		end := start + lookupChunk
		if end > len(names) {
			end = len(names)
		}
		var hits []aliasHit
		if err := t.Table(table).
			Select("alias_text_normalized, "+idCol+" AS canonical_id, confidence_score").
			Where("alias_text_normalized IN ?", names[start:end]).
			Order("alias_text_normalized ASC, confidence_score DESC, " + idCol + " ASC").
			Scan(&hits).Error; err != nil {
			return nil, err
		}
		for _, h := range hits {
			if _, seen := out[h.AliasTextNormalized]; !seen {
				out[h.AliasTextNormalized] = AliasMatch{CanonicalID: h.CanonicalID, ConfidenceScore: h.ConfidenceScore}
			}
		}
	}
	return out, nil
}

func (r *aliasRepo) ListFirmAliases(dbc dbctx.Context, firmID uuid.UUID) ([]*types.FirmAlias, error) {
	var out []*types.FirmAlias
	if err := dbc.Or(r.db).
		Where("canonical_firm_id = ?", firmID).
		Order("confidence_score DESC, alias_text ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *aliasRepo) Counts(dbc dbctx.Context) (map[string]int64, error) {
	t := dbc.Or(r.db)
	var firms, funds int64
	if err := t.Model(&types.FirmAlias{}).Count(&firms).Error; err != nil {
		return nil, err
	}
	if err := t.Model(&types.FundAlias{}).Count(&funds).Error; err != nil {
		return nil, err
	}
	return map[string]int64{"firm_alias": firms, "fund_alias": funds}, nil
}
