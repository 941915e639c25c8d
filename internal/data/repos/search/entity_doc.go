package search

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// CandidateQuery selects docs of one entity type containing any of Tokens.
// Results come in id order; After continues from the last id of the previous
// page.
type CandidateQuery struct {
	EntityType string
	Tokens     []string
	Where      []db.Predicate
	After      uuid.UUID
	Limit      int
}

type EntityDocRepo interface {
	// Upsert writes docs keyed by (entity_type, entity_id). A doc whose text
	// changed loses its embedding so it is picked up again.
	Upsert(dbc dbctx.Context, docs []*types.EntityDoc) (int64, error)
	PageWithoutEmbedding(dbc dbctx.Context, entityType string, after uuid.UUID, limit int) ([]*types.EntityDoc, error)
	SetEmbedding(dbc dbctx.Context, id uuid.UUID, vector datatypes.JSON, model string) error
	LexicalCandidates(dbc dbctx.Context, q CandidateQuery) ([]*types.EntityDoc, error)
	GetByEntityIDs(dbc dbctx.Context, entityType string, ids []uuid.UUID, where []db.Predicate) ([]*types.EntityDoc, error)
	Counts(dbc dbctx.Context) (total int64, embedded int64, err error)
}

type entityDocRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityDocRepo(db *gorm.DB, baseLog *logger.Logger) EntityDocRepo {
	return &entityDocRepo{
		db:  db,
		log: baseLog.With("repo", "EntityDocRepo"),
	}
}

func (r *entityDocRepo) Upsert(dbc dbctx.Context, docs []*types.EntityDoc) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	t := dbc.Or(r.db)
	changed := "entity_doc.doc_text <> excluded.doc_text"
	set := clause.Set{
		{Column: clause.Column{Name: "embedding"}, Value: gorm.Expr("CASE WHEN " + changed + " THEN NULL ELSE entity_doc.embedding END")},
		{Column: clause.Column{Name: "embedding_model"}, Value: gorm.Expr("CASE WHEN " + changed + " THEN NULL ELSE entity_doc.embedding_model END")},
		{Column: clause.Column{Name: "embedded_at"}, Value: gorm.Expr("CASE WHEN " + changed + " THEN NULL ELSE entity_doc.embedded_at END")},
		{Column: clause.Column{Name: "title"}, Value: gorm.Expr("excluded.title")},
		{Column: clause.Column{Name: "doc_text"}, Value: gorm.Expr("excluded.doc_text")},
		{Column: clause.Column{Name: "metadata"}, Value: gorm.Expr("excluded.metadata")},
		{Column: clause.Column{Name: "run_id"}, Value: gorm.Expr("excluded.run_id")},
		{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
	}
	var total int64
	size := db.BatchSize(t)
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		res := t.Clauses(clause.OnConflict{
			Columns:   db.Columns("entity_type", "entity_id"),
			DoUpdates: set,
		}).Create(docs[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (r *entityDocRepo) PageWithoutEmbedding(dbc dbctx.Context, entityType string, after uuid.UUID, limit int) ([]*types.EntityDoc, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.EntityDoc
	if err := dbc.Or(r.db).
		Where("entity_type = ? AND embedding IS NULL AND id > ?", entityType, after).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityDocRepo) SetEmbedding(dbc dbctx.Context, id uuid.UUID, vector datatypes.JSON, model string) error {
	now := time.Now().UTC()
	return dbc.Or(r.db).
		Model(&types.EntityDoc{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":       vector,
			"embedding_model": model,
			"embedded_at":     now,
			"updated_at":      now,
		}).Error
}

func (r *entityDocRepo) LexicalCandidates(dbc dbctx.Context, q CandidateQuery) ([]*types.EntityDoc, error) {
	var out []*types.EntityDoc
	if len(q.Tokens) == 0 {
		return out, nil
	}
	if q.Limit <= 0 {
		q.Limit = 500
	}
	clauses := make([]string, 0, len(q.Tokens))
	args := make([]interface{}, 0, len(q.Tokens)*2)
	for _, tok := range q.Tokens {
		like := "%" + escapeLike(strings.ToLower(tok)) + "%"
		clauses = append(clauses, `LOWER(title) LIKE ? ESCAPE '\' OR LOWER(doc_text) LIKE ? ESCAPE '\'`)
		args = append(args, like, like)
	}
	tx := dbc.Or(r.db).
		Where("entity_type = ?", q.EntityType).
		Where("("+strings.Join(clauses, " OR ")+")", args...)
	if q.After != uuid.Nil {
		tx = tx.Where("id > ?", q.After)
	}
	tx = db.Apply(tx, q.Where)
	if err := tx.Order("id ASC").Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityDocRepo) GetByEntityIDs(dbc dbctx.Context, entityType string, ids []uuid.UUID, where []db.Predicate) ([]*types.EntityDoc, error) {
	var out []*types.EntityDoc
	if len(ids) == 0 {
		return out, nil
	}
	tx := dbc.Or(r.db).Where("entity_type = ? AND entity_id IN ?", entityType, ids)
	tx = db.Apply(tx, where)
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityDocRepo) Counts(dbc dbctx.Context) (int64, int64, error) {
	t := dbc.Or(r.db)
	var total, embedded int64
	if err := t.Model(&types.EntityDoc{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := t.Model(&types.EntityDoc{}).Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
