package ingest

import (
	"fmt"

	jobrt "github.com/yungbote/dealgraph-backend/internal/jobs/runtime"
	"github.com/yungbote/dealgraph-backend/internal/modules/ingestion"
)

// Run expects payload.path. Without a caller-chosen run id and with
// payload.resume set, the latest unfinished run of the same file continues.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	path := jc.PayloadString("path")
	if path == "" {
		jc.Fail("validate", fmt.Errorf("missing path"))
		return nil
	}
	in := ingestion.IngestInput{
		Path:    path,
		Sheets:  jc.PayloadStrings("sheets"),
		RunID:   jc.PayloadString("run_id"),
		Resume:  jc.PayloadBool("resume"),
		Dataset: jc.PayloadString("dataset"),
	}
	if in.RunID == "" && !in.Resume {
		in.RunID = jc.RunID()
	}
	if n, ok := jc.PayloadInt("chunk_size"); ok {
		in.ChunkSize = n
	}

	jc.Progress("ingest", 5, "Ingesting "+path)
	out, err := p.ingestion.Ingest(jc.Ctx, in)
	jc.SetRunID(out.RunID)
	if err != nil {
		jc.Fail("ingest", err, out)
		return nil
	}
	if out.Failed() {
		jc.Fail("ingest", fmt.Errorf("one or more sheets failed; rerun with resume"), out)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
