package transform

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction"
)

// Run rebuilds the normalized staging tables. payload.source_run_id limits
// the rebuild to one ingestion run.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("transform", 5, "Normalizing raw records")
	out, err := p.extraction.Transform(jc.Ctx, extraction.TransformInput{RunID: jc.PayloadString("source_run_id")})
	if err != nil {
		jc.Fail("transform", err, out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
