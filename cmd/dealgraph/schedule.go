package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/jobs/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := theApp.Cfg
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = cfg.IngestPath
		}
		spec, _ := cmd.Flags().GetString("cron")
		if spec == "" {
			spec = cfg.ScheduleCron
		}
		s := scheduler.New(theApp.Log, theApp.Services.Runner, scheduler.DefaultChain(path))

		if once, _ := cmd.Flags().GetBool("once"); once {
			res, err := s.RunChain(cmd.Context())
			if perr := printJSON(res); perr != nil && err == nil {
				err = perr
			}
			return err
		}

		if err := s.Start(cmd.Context(), spec); err != nil {
			return err
		}
		<-cmd.Context().Done()
		s.Stop()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().String("cron", "", "Cron expression (defaults to SCHEDULE_CRON)")
	scheduleCmd.Flags().String("path", "", "Workbook to ingest on each run (defaults to INGEST_PATH)")
	scheduleCmd.Flags().Bool("once", false, "Run the chain once and exit")
	rootCmd.AddCommand(scheduleCmd)
}
