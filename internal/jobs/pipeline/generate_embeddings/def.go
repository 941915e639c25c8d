package generate_embeddings

import (
	"github.com/yungbote/dealgraph-backend/internal/modules/search"
	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

const JobType = "generate_embeddings"

type Pipeline struct {
	log    *logger.Logger
	search search.Usecases
}

func New(baseLog *logger.Logger, uc search.Usecases) *Pipeline {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("job", JobType)
	return &Pipeline{log: log, search: uc.WithLog(log)}
}

func (p *Pipeline) Type() string { return JobType }
