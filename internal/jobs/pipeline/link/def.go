package link

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "link"

type Pipeline struct {
	log        *logger.Logger
	extraction extraction.Usecases
}

func New(baseLog *logger.Logger, uc extraction.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, extraction: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
