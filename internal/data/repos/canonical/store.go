package canonical

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
)

// lookupChunk bounds IN-list sizes so lookups stay under driver parameter limits.
const lookupChunk = 500

// store holds the queries every canonical entity table shares.
type store[T any] struct {
	table string
}

type idKey struct {
	ID        uuid.UUID
	LookupKey string
}

func (s store[T]) upsert(t *gorm.DB, rows []*T, set clause.Set) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	set = append(set, clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")})
	var total int64
	size := db.BatchSize(t)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		res := t.Clauses(clause.OnConflict{
			Columns:   db.Columns("source_system", "source_id"),
			DoUpdates: set,
		}).Create(rows[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s store[T]) getByIDs(t *gorm.DB, ids []uuid.UUID) ([]*T, error) {
	var out []*T
	if len(ids) == 0 {
		return out, nil
	}
	for _, part := range chunkIDs(ids) {
		var rows []*T
		if err := t.Table(s.table).Where("id IN ?", part).Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s store[T]) getByID(t *gorm.DB, id uuid.UUID) (*T, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := s.getByIDs(t, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// idsBy maps each distinct value of col to the smallest matching id.
func (s store[T]) idsBy(t *gorm.DB, col string, keys []string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID, len(keys))
	keys = distinct(keys)
	for start := 0; start < len(keys); start += lookupChunk {
		end := start + lookupChunk
		if end > len(keys) {
			end = len(keys)
		}
		var rows []idKey
		if err := t.Table(s.table).
			Select("id, "+col+" AS lookup_key").
			Where(col+" IN ?", keys[start:end]).
			Order(col + " ASC, id ASC").
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			if _, seen := out[r.LookupKey]; !seen {
				out[r.LookupKey] = r.ID
			}
		}
	}
	return out, nil
}

func (s store[T]) page(t *gorm.DB, after uuid.UUID, limit int, preds ...db.Predicate) ([]*T, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []*T
	q := t.Table(s.table).Where("id > ?", after)
	q = db.Apply(q, preds)
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s store[T]) list(t *gorm.DB, lq db.ListQuery) ([]*T, int64, error) {
	var total int64
	base := db.Apply(t.Table(s.table), lq.Where)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := lq.Order
	if order == "" {
		order = "id ASC"
	}
	var out []*T
	if err := base.Session(&gorm.Session{}).
		Order(order).
		Offset(lq.Offset).
		Limit(lq.Limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s store[T]) count(t *gorm.DB) (int64, error) {
	var n int64
	if err := t.Table(s.table).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s store[T]) setColumn(t *gorm.DB, id uuid.UUID, col string, val interface{}) error {
	return t.Table(s.table).
		Where("id = ?", id).
		Updates(map[string]interface{}{col: val, "updated_at": time.Now().UTC()}).Error
}

func chunkIDs(ids []uuid.UUID) [][]uuid.UUID {
	var out [][]uuid.UUID
	for start := 0; start < len(ids); start += lookupChunk {
		end := start + lookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func distinct(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
