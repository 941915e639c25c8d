package generate_embeddings

import (
	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/search"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	in := search.EmbeddingsInput{Kinds: jc.PayloadStrings("kinds")}
	if n, ok := jc.PayloadInt("limit"); ok {
		in.Limit = n
	}
	jc.Progress("embed", 5, "Embedding search documents")
	out, err := p.search.GenerateEmbeddings(jc.Ctx, in)
	if err != nil {
		jc.Fail("embed", err, out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
