package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/quarantine_replay"
	"github.com/yungbote/dealgraph-backend/internal/jobs/pipeline/quarantine_sweep"
	"github.com/yungbote/dealgraph-backend/internal/modules/quarantine"
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Sweep, inspect and replay quarantined references",
}

var quarantineSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Quarantine every unresolved reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, quarantine_sweep.JobType, nil)
	},
}

var quarantineSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count open quarantine records by source table and error type",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := theApp.Services.Quarantine.Summary(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var quarantineReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Retry open records against the current canonical tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, quarantine_replay.JobType, nil)
	},
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "Page through quarantine records",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := quarantine.ListInput{}
		in.SourceTable, _ = cmd.Flags().GetString("source-table")
		in.ErrorType, _ = cmd.Flags().GetString("error-type")
		in.Page, _ = cmd.Flags().GetInt("page")
		in.PageSize, _ = cmd.Flags().GetInt("page-size")
		if cmd.Flags().Changed("resolved") {
			resolved, _ := cmd.Flags().GetBool("resolved")
			in.Resolved = &resolved
		}
		out, err := theApp.Services.Quarantine.List(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var quarantineResolveCmd = &cobra.Command{
	Use:   "resolve <id>...",
	Short: "Mark records resolved by hand",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseUUIDs(args)
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")
		n, err := theApp.Services.Quarantine.Resolve(cmd.Context(), ids, notes)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"resolved": n})
	},
}

func parseUUIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	quarantineListCmd.Flags().String("source-table", "", "Filter by source table")
	quarantineListCmd.Flags().String("error-type", "", "Filter by error type")
	quarantineListCmd.Flags().Bool("resolved", false, "Filter by resolved state")
	quarantineListCmd.Flags().Int("page", 1, "Page number")
	quarantineListCmd.Flags().Int("page-size", 0, "Records per page")
	quarantineResolveCmd.Flags().String("notes", "", "Resolution notes")

	quarantineCmd.AddCommand(
		quarantineSweepCmd,
		quarantineSummaryCmd,
		quarantineReplayCmd,
		quarantineListCmd,
		quarantineResolveCmd,
	)
	rootCmd.AddCommand(quarantineCmd)
}
