package rebuild_edges

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/coinvest"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "rebuild_edges"

type Pipeline struct {
	log      *logger.Logger
	coinvest coinvest.Usecases
}

func New(baseLog *logger.Logger, uc coinvest.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, coinvest: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
