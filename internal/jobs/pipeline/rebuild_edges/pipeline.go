package rebuild_edges

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/coinvest"
)

// Run rebuilds the co-investment edges. payload.max_investors_per_deal
// overrides the configured high-degree cap.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	in := coinvest.RebuildInput{RunID: jc.RunID()}
	if n, ok := jc.PayloadInt("max_investors_per_deal"); ok {
		in.MaxInvestorsPerDeal = n
	}
	jc.Progress("rebuild", 5, "Rebuilding co-investment edges")
	out, err := p.coinvest.RebuildEdges(jc.Ctx, in)
	if err != nil {
		jc.Fail("rebuild", err, out)
		return nil
	}
	if out.ProjectionError != "" {
		p.log.Warn("graph projection failed; edges are committed", "error", out.ProjectionError)
	}
	jc.Succeed("done", out)
	return nil
}
