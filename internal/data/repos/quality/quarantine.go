package quality

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

// TypeSummary aggregates unresolved quarantine rows for one source table and error type.
type TypeSummary struct {
	SourceTable string    `json:"source_table"`
	ErrorType   string    `json:"error_type"`
	Count       int64     `json:"count"`
	Oldest      time.Time `json:"oldest"`
	Newest      time.Time `json:"newest"`
}

type Filter struct {
	SourceTable string
	ErrorType   string
	// Resolved filters by state when set.
	Resolved *bool
}

type QuarantineRepo interface {
	// CreateIgnoreDuplicates inserts offenders; an offender already quarantined
	// for the same error, resolved or not, is left as is.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.QuarantineRecord) (int64, error)
	Summary(dbc dbctx.Context) ([]TypeSummary, error)
	List(dbc dbctx.Context, f Filter, offset, limit int) ([]*types.QuarantineRecord, int64, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.QuarantineRecord, error)
	MarkResolved(dbc dbctx.Context, ids []uuid.UUID, notes string) (int64, error)
	// MarkResolvedBySource resolves the open row for one offender.
	MarkResolvedBySource(dbc dbctx.Context, sourceTable, sourceRecordID, errorType, notes string) (int64, error)
	CountUnresolved(dbc dbctx.Context) (int64, error)
}

type quarantineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuarantineRepo(db *gorm.DB, baseLog *logger.Logger) QuarantineRepo {
	return &quarantineRepo{
		db:  db,
		log: baseLog.With("repo", "QuarantineRepo"),
	}
}

func (r *quarantineRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.QuarantineRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	t := dbc.Or(r.db)
	var total int64
	size := db.BatchSize(t)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		res := t.Clauses(clause.OnConflict{
			Columns:   db.Columns("source_table", "source_record_id", "error_type"),
			DoNothing: true,
		}).Create(rows[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

type summaryRow struct {
	SourceTable string
	ErrorType   string
	Count       int64
	Oldest      string
	Newest      string
}

func (r *quarantineRepo) Summary(dbc dbctx.Context) ([]TypeSummary, error) {
	var rows []summaryRow
	if err := dbc.Or(r.db).
		Model(&types.QuarantineRecord{}).
		Select("source_table, error_type, COUNT(*) AS count, MIN(created_at) AS oldest, MAX(created_at) AS newest").
		Where("resolved = ?", false).
		Group("source_table, error_type").
		Order("count DESC, source_table ASC, error_type ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]TypeSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, TypeSummary{
			SourceTable: row.SourceTable,
			ErrorType:   row.ErrorType,
			Count:       row.Count,
			Oldest:      parseAggregateTime(row.Oldest),
			Newest:      parseAggregateTime(row.Newest),
		})
	}
	return out, nil
}

// MIN/MAX over a timestamp comes back as text on SQLite and as a timestamp
// string on PostgreSQL when scanned into a string.
func parseAggregateTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (r *quarantineRepo) List(dbc dbctx.Context, f Filter, offset, limit int) ([]*types.QuarantineRecord, int64, error) {
	q := dbc.Or(r.db).Model(&types.QuarantineRecord{})
	if f.SourceTable != "" {
		q = q.Where("source_table = ?", f.SourceTable)
	}
	if f.ErrorType != "" {
		q = q.Where("error_type = ?", f.ErrorType)
	}
	if f.Resolved != nil {
		q = q.Where("resolved = ?", *f.Resolved)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.QuarantineRecord
	if err := q.Session(&gorm.Session{}).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *quarantineRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.QuarantineRecord, error) {
	var out []*types.QuarantineRecord
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Or(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *quarantineRepo) MarkResolved(dbc dbctx.Context, ids []uuid.UUID, notes string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.Or(r.db).
		Model(&types.QuarantineRecord{}).
		Where("id IN ? AND resolved = ?", ids, false).
		Updates(resolvedFields(notes))
	return res.RowsAffected, res.Error
}

func (r *quarantineRepo) MarkResolvedBySource(dbc dbctx.Context, sourceTable, sourceRecordID, errorType, notes string) (int64, error) {
	res := dbc.Or(r.db).
		Model(&types.QuarantineRecord{}).
		Where("source_table = ? AND source_record_id = ? AND error_type = ? AND resolved = ?", sourceTable, sourceRecordID, errorType, false).
		Updates(resolvedFields(notes))
	return res.RowsAffected, res.Error
}

func resolvedFields(notes string) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"resolved":         true,
		"resolution_notes": notes,
		"reprocessed_at":   now,
		"updated_at":       now,
	}
}

func (r *quarantineRepo) CountUnresolved(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.Or(r.db).Model(&types.QuarantineRecord{}).Where("resolved = ?", false).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
