package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/extract"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_docs"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/generate_embeddings"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/ingest"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/link"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/rebuild_edges"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/resolve"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/transform"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Stream workbook or CSV rows into raw staging tables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if len(args) == 1 {
			path = args[0]
		}
		if strings.TrimSpace(path) == "" {
			path = theApp.Cfg.IngestPath
		}
		sheets, _ := cmd.Flags().GetStringSlice("sheets")
		resume, _ := cmd.Flags().GetBool("resume")
		dataset, _ := cmd.Flags().GetString("dataset")
		chunk, _ := cmd.Flags().GetInt("chunk-size")

		payload := map[string]any{"path": path, "resume": resume}
		if len(sheets) > 0 {
			payload["sheets"] = sheets
		}
		if dataset != "" {
			payload["dataset"] = dataset
		}
		if chunk > 0 {
			payload["chunk_size"] = chunk
		}
		return runJob(cmd, ingest.JobType, payload)
	},
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Normalize raw rows into typed staging rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, _ := cmd.Flags().GetString("source-run-id")
		return runJob(cmd, transform.JobType, map[string]any{"source_run_id": src})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Upsert canonical entities from staging rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, extract.JobType, kindPayload(cmd))
	},
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Resolve cross-entity references into link rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, link.JobType, kindPayload(cmd))
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Cluster duplicate firms and funds",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := kindPayload(cmd)
		if cmd.Flags().Changed("threshold") {
			th, _ := cmd.Flags().GetFloat64("threshold")
			payload["threshold"] = th
		}
		return runJob(cmd, resolve.JobType, payload)
	},
}

var rebuildEdgesCmd = &cobra.Command{
	Use:   "rebuild-edges",
	Short: "Rebuild the co-investment edge table",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{}
		if n, _ := cmd.Flags().GetInt("max-investors-per-deal"); n > 0 {
			payload["max_investors_per_deal"] = n
		}
		return runJob(cmd, rebuild_edges.JobType, payload)
	},
}

var generateDocsCmd = &cobra.Command{
	Use:   "generate-docs",
	Short: "Render search documents for canonical entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, _ := cmd.Flags().GetStringSlice("kinds")
		return runJob(cmd, generate_docs.JobType, map[string]any{"kinds": kinds})
	},
}

var generateEmbeddingsCmd = &cobra.Command{
	Use:   "generate-embeddings",
	Short: "Embed search documents that have no vector yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, _ := cmd.Flags().GetStringSlice("kinds")
		payload := map[string]any{"kinds": kinds}
		if n, _ := cmd.Flags().GetInt("limit"); n > 0 {
			payload["limit"] = n
		}
		return runJob(cmd, generate_embeddings.JobType, payload)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent job runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := theApp.Services.Runner.Recent(cmd.Context(), jobType, limit)
		if err != nil {
			return err
		}
		return printJSON(rows)
	},
}

func kindPayload(cmd *cobra.Command) map[string]any {
	payload := map[string]any{}
	if kind, _ := cmd.Flags().GetString("kind"); strings.TrimSpace(kind) != "" {
		payload["kind"] = strings.TrimSpace(kind)
	}
	return payload
}

func init() {
	ingestCmd.Flags().String("path", "", "Workbook (.xlsx) or CSV file (defaults to INGEST_PATH)")
	ingestCmd.Flags().StringSlice("sheets", nil, "Only ingest these sheets")
	ingestCmd.Flags().Bool("resume", false, "Continue the latest unfinished run of the same file")
	ingestCmd.Flags().String("dataset", "", "Dataset name for a CSV file")
	ingestCmd.Flags().Int("chunk-size", 0, "Rows per committed chunk")

	transformCmd.Flags().String("source-run-id", "", "Only transform rows from this ingestion run")

	extractCmd.Flags().String("kind", "", "Entity kind (firm, fund, person, company, deal); all when empty")
	linkCmd.Flags().String("kind", "", "Link kind; all when empty")
	resolveCmd.Flags().String("kind", "", "firm or fund; both when empty")
	resolveCmd.Flags().Float64("threshold", 0, "Match probability threshold")

	rebuildEdgesCmd.Flags().Int("max-investors-per-deal", 0, "Skip deals with more investors than this")

	generateDocsCmd.Flags().StringSlice("kinds", nil, "Entity kinds to render; all when empty")
	generateEmbeddingsCmd.Flags().StringSlice("kinds", nil, "Entity kinds to embed; all when empty")
	generateEmbeddingsCmd.Flags().Int("limit", 0, "Maximum documents to embed")

	runsCmd.Flags().String("type", "", "Filter by job type")
	runsCmd.Flags().Int("limit", 20, "Rows to return")

	rootCmd.AddCommand(
		ingestCmd,
		transformCmd,
		extractCmd,
		linkCmd,
		resolveCmd,
		rebuildEdgesCmd,
		generateDocsCmd,
		generateEmbeddingsCmd,
		runsCmd,
	)
}
