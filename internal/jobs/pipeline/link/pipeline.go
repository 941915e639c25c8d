package link

import (
	"fmt"

	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/extraction"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

// Run executes payload.kind, or every link pass in order when unset.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	kinds := extraction.LinkKinds
	if k := jc.PayloadString("kind"); k != "" {
		if !known(k) {
			jc.Fail("validate", fmt.Errorf("unknown link kind %q: %w", k, dgerrors.ErrInvalidArgument))
			return nil
		}
		kinds = []string{k}
	}

	results := make([]extraction.LinkOutput, 0, len(kinds))
	for i, kind := range kinds {
		jc.Progress("link", 5+90*i/len(kinds), "Linking "+kind)
		out, err := p.extraction.Link(jc.Ctx, extraction.LinkInput{Kind: kind})
		results = append(results, out)
		if err != nil {
			jc.Fail("link_"+kind, err, map[string]any{"results": results})
			return nil
		}
	}
	jc.Succeed("done", map[string]any{"results": results})
	return nil
}

func known(kind string) bool {
	for _, k := range extraction.LinkKinds {
		if k == kind {
			return true
		}
	}
	return false
}
