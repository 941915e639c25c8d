package resolve

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/resolution"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "resolve"

type Pipeline struct {
	log        *logger.Logger
	resolution resolution.Usecases
}

func New(baseLog *logger.Logger, uc resolution.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, resolution: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
