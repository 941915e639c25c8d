package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and indexes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return openApp(cmd, app.Options{Migrate: true})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(map[string]any{"migrated": true, "driver": theApp.Cfg.DB.Driver})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
