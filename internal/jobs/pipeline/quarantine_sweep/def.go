package quarantine_sweep

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "quarantine_sweep"

type Pipeline struct {
	log        *logger.Logger
	quarantine quarantine.Usecases
}

func New(baseLog *logger.Logger, uc quarantine.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, quarantine: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
