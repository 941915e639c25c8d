package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/app"
)

var (
	theApp *app.App
	runID  string
)

var rootCmd = &cobra.Command{
	Use:           "dealgraph",
	Short:         "Private-market knowledge graph pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return openApp(cmd, app.Options{})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "Run identifier stamped on the job (generated when empty)")
}

// openApp fails fast on configuration errors before any stage runs.
func openApp(cmd *cobra.Command, opts app.Options) error {
	if theApp != nil {
		return nil
	}
	a, err := app.New(cmd.Context(), opts)
	if err != nil {
		return err
	}
	theApp = a
	return nil
}

func closeApp() {
	if theApp != nil {
		theApp.Close()
		theApp = nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// runJob executes jobType through the runner and prints the job_run row.
func runJob(cmd *cobra.Command, jobType string, payload map[string]any) error {
	job, err := theApp.Services.Runner.Run(cmd.Context(), jobType, runID, payload)
	if job != nil {
		if perr := printJSON(job); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
