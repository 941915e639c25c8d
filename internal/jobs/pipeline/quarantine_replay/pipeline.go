package quarantine_replay

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("replay", 5, "Replaying unresolved investors")
	out, err := p.quarantine.Replay(jc.Ctx)
	if err != nil {
		jc.Fail("replay", err, out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
