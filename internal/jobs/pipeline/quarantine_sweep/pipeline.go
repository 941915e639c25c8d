package quarantine_sweep

import (
	"fmt"
	"strings"

	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine"
)

// Run quarantines every unresolved reference under the job's run id. A
// failing source table fails the job after the others were swept.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("sweep", 5, "Sweeping unresolved references")
	out, err := p.quarantine.Sweep(jc.Ctx, quarantine.SweepInput{RunID: jc.RunID()})
	if err != nil {
		jc.Fail("sweep", err, out)
		return nil
	}
	if len(out.Failed) > 0 {
		jc.Fail("sweep", fmt.Errorf("sweep failed for %s", strings.Join(out.Failed, ", ")), out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
