package staging

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type RawRecordRepo interface {
	// CreateIgnoreDuplicates inserts rows, skipping any (run, file, sheet, row) already stored.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.RawRecord) (int64, error)
	// ForEachBatch walks records in id order, optionally restricted to one run.
	ForEachBatch(dbc dbctx.Context, runID string, batchSize int, fn func(batch []*types.RawRecord) error) error
	CountByRun(dbc dbctx.Context, runID string) (int64, error)
}

type rawRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawRecordRepo(db *gorm.DB, baseLog *logger.Logger) RawRecordRepo {
	return &rawRecordRepo{
		db:  db,
		log: baseLog.With("repo", "RawRecordRepo"),
	}
}

func (r *rawRecordRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.RawRecord) (int64, error) {
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
			Columns:   db.Columns("run_id", "source_file", "source_sheet", "source_row_number"),
			DoNothing: true,
		}).Create(rows[start:end])
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (r *rawRecordRepo) ForEachBatch(dbc dbctx.Context, runID string, batchSize int, fn func(batch []*types.RawRecord) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	q := dbc.Or(r.db).Model(&types.RawRecord{})
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	var batch []*types.RawRecord
	res := q.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

func (r *rawRecordRepo) CountByRun(dbc dbctx.Context, runID string) (int64, error) {
	var n int64
	q := dbc.Or(r.db).Model(&types.RawRecord{})
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
