package ingestion

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dealgraph-backend/internal/data/repos"
	"github.com/yungbote/dealgraph-backend/internal/modules/ingestion/steps"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Raw        repos.RawRecordRepo
	Checkpoint repos.CheckpointRepo

	ChunkSize        int
	SheetConcurrency int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	IngestInput  = steps.IngestInput
	IngestOutput = steps.IngestOutput
	SheetResult  = steps.SheetResult
)

func (u Usecases) Ingest(ctx context.Context, in IngestInput) (IngestOutput, error) {
	return steps.Ingest(ctx, steps.IngestDeps{
		DB:               u.deps.DB,
		Log:              u.deps.Log,
		Raw:              u.deps.Raw,
		Checkpoint:       u.deps.Checkpoint,
		ChunkSize:        u.deps.ChunkSize,
		SheetConcurrency: u.deps.SheetConcurrency,
	}, in)
}

// Checkpoints lists the per-sheet progress of one run.
func (u Usecases) Checkpoints(ctx context.Context, runID string) ([]steps.CheckpointView, error) {
	return steps.ListCheckpoints(ctx, u.deps.Checkpoint, runID)
}
