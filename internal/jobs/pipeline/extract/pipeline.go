package extract

import (
	"fmt"

	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction"
)

// Run extracts payload.kind, or every kind in dependency order when unset.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	kinds := extraction.ExtractKinds
	if k := jc.PayloadString("kind"); k != "" {
		kind, err := extraction.ParseKind(k)
		if err != nil {
			jc.Fail("validate", err)
			return nil
		}
		kinds = []string{kind}
	}

	results := make([]extraction.ExtractOutput, 0, len(kinds))
	for i, kind := range kinds {
		jc.Progress("extract", 5+90*i/len(kinds), fmt.Sprintf("Extracting %s", kind))
		out, err := p.extraction.Extract(jc.Ctx, extraction.ExtractInput{Kind: kind})
		results = append(results, out)
		if err != nil {
			jc.Fail("extract_"+kind, err, map[string]any{"results": results})
			return nil
		}
	}
	jc.Succeed("done", map[string]any{"results": results})
	return nil
}
