package ingest

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/ingestion"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "ingest"

type Pipeline struct {
	log       *logger.Logger
	ingestion ingestion.Usecases
}

func New(baseLog *logger.Logger, uc ingestion.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, ingestion: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
