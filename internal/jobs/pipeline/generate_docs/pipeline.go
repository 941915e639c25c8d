package generate_docs

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/search"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("docs", 5, "Generating search documents")
	out, err := p.search.GenerateDocs(jc.Ctx, search.DocsInput{
		Kinds: jc.PayloadStrings("kinds"),
		RunID: jc.RunID(),
	})
	if err != nil {
		jc.Fail("docs", err, out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
