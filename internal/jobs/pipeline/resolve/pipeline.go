package resolve

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/resolution"
)

// Run resolves payload.kind, or firms then funds when unset. payload.threshold
// overrides the match cut-off of a single-kind run.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	kind := jc.PayloadString("kind")
	if kind == "" {
		jc.Progress("resolve", 5, "Resolving firms and funds")
		outs, err := p.resolution.ResolveAll(jc.Ctx)
		if err != nil {
			jc.Fail("resolve", err, map[string]any{"results": outs})
			return nil
		}
		jc.Succeed("done", map[string]any{"results": outs})
		return nil
	}

	in := resolution.ResolveInput{Kind: kind}
	if t, ok := jc.PayloadFloat("threshold"); ok {
		in.Threshold = &t
	}
	jc.Progress("resolve", 5, "Resolving "+kind)
	out, err := p.resolution.Resolve(jc.Ctx, in)
	if err != nil {
		jc.Fail("resolve_"+kind, err, out)
		return nil
	}
	jc.Succeed("done", map[string]any{"results": []resolution.ResolveOutput{out}})
	return nil
}
