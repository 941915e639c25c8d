package staging

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dealgraph-backend/internal/data/db"
	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/pkg/dbctx"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

// CheckpointKey identifies one sheet of one file within a run.
type CheckpointKey struct {
	RunID       string
	SourceFile  string
	SourceSheet string
}

type CheckpointRepo interface {
	Get(dbc dbctx.Context, key CheckpointKey) (*types.IngestionCheckpoint, error)
	// Advance records a committed chunk: last_row moves to lastRow and
	// rows_ingested grows by added. The status returns to in_progress.
	Advance(dbc dbctx.Context, key CheckpointKey, lastRow int, added int) error
	Complete(dbc dbctx.Context, key CheckpointKey) error
	// Fail keeps the sheet resumable and records why it stopped.
	Fail(dbc dbctx.Context, key CheckpointKey, msg string) error
	// LatestInProgressRun returns the run id most recently advanced for file, or "".
	LatestInProgressRun(dbc dbctx.Context, sourceFile string) (string, error)
	ListByRun(dbc dbctx.Context, runID string) ([]*types.IngestionCheckpoint, error)
}

type checkpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	return &checkpointRepo{
		db:  db,
		log: baseLog.With("repo", "CheckpointRepo"),
	}
}

func (r *checkpointRepo) Get(dbc dbctx.Context, key CheckpointKey) (*types.IngestionCheckpoint, error) {
	var out []*types.IngestionCheckpoint
	err := dbc.Or(r.db).
		Where("run_id = ? AND source_file = ? AND source_sheet = ?", key.RunID, key.SourceFile, key.SourceSheet).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *checkpointRepo) Advance(dbc dbctx.Context, key CheckpointKey, lastRow int, added int) error {
	now := time.Now().UTC()
	row := &types.IngestionCheckpoint{
		RunID:        key.RunID,
		SourceFile:   key.SourceFile,
		SourceSheet:  key.SourceSheet,
		LastRow:      lastRow,
		RowsIngested: added,
		Status:       types.CheckpointInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return dbc.Or(r.db).Clauses(clause.OnConflict{
		Columns: db.Columns("run_id", "source_file", "source_sheet"),
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "last_row"}, Value: gorm.Expr("excluded.last_row")},
			{Column: clause.Column{Name: "rows_ingested"}, Value: gorm.Expr("ingestion_checkpoint.rows_ingested + excluded.rows_ingested")},
			{Column: clause.Column{Name: "status"}, Value: gorm.Expr("excluded.status")},
			{Column: clause.Column{Name: "error"}, Value: ""},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(row).Error
}

func (r *checkpointRepo) Complete(dbc dbctx.Context, key CheckpointKey) error {
	return r.setStatus(dbc, key, types.CheckpointCompleted, "")
}

func (r *checkpointRepo) Fail(dbc dbctx.Context, key CheckpointKey, msg string) error {
	return r.setStatus(dbc, key, types.CheckpointInProgress, msg)
}

func (r *checkpointRepo) setStatus(dbc dbctx.Context, key CheckpointKey, status, msg string) error {
	now := time.Now().UTC()
	row := &types.IngestionCheckpoint{
		RunID:       key.RunID,
		SourceFile:  key.SourceFile,
		SourceSheet: key.SourceSheet,
		Status:      status,
		Error:       msg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return dbc.Or(r.db).Clauses(clause.OnConflict{
		Columns:   db.Columns("run_id", "source_file", "source_sheet"),
		DoUpdates: clause.AssignmentColumns([]string{"status", "error", "updated_at"}),
	}).Create(row).Error
}

func (r *checkpointRepo) LatestInProgressRun(dbc dbctx.Context, sourceFile string) (string, error) {
	var out []*types.IngestionCheckpoint
	err := dbc.Or(r.db).
		Where("source_file = ? AND status = ?", sourceFile, types.CheckpointInProgress).
		Order("updated_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return out[0].RunID, nil
}

func (r *checkpointRepo) ListByRun(dbc dbctx.Context, runID string) ([]*types.IngestionCheckpoint, error) {
	var out []*types.IngestionCheckpoint
	if err := dbc.Or(r.db).
		Where("run_id = ?", runID).
		Order("source_file ASC, source_sheet ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
