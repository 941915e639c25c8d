package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/modules/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid lexical and semantic entity search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := search.SearchInput{Query: strings.Join(args, " ")}
		in.EntityTypes, _ = cmd.Flags().GetStringSlice("types")
		in.UseSemantic, _ = cmd.Flags().GetBool("semantic")
		in.Limit, _ = cmd.Flags().GetInt("limit")
		filters, _ := cmd.Flags().GetStringToString("filter")
		if len(filters) > 0 {
			in.Filters = make(map[string]any, len(filters))
			for k, v := range filters {
				in.Filters[k] = v
			}
		}
		out, err := theApp.Services.Search.Search(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		return printJSON(out)
	},
}

func init() {
	searchCmd.Flags().StringSlice("types", nil, "Entity types to search; all when empty")
	searchCmd.Flags().Bool("semantic", true, "Blend vector similarity when embeddings are available")
	searchCmd.Flags().Int("limit", 0, "Maximum results (1-100)")
	searchCmd.Flags().StringToString("filter", nil, "Metadata filters, key=value")
	rootCmd.AddCommand(searchCmd)
}
