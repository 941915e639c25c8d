package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dealgraph-backend/internal/modules/coinvest"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Query the co-investment graph",
}

var coInvestorsCmd = &cobra.Command{
	Use:   "co-investors <firm-id>",
	Short: "Firms that co-invested with a firm, by shared deals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFirmID(args[0])
		if err != nil {
			return err
		}
		in := coinvest.CoInvestorsInput{FirmID: id}
		in.MinDeals, _ = cmd.Flags().GetInt("min-deals")
		in.Limit, _ = cmd.Flags().GetInt("limit")
		out, err := theApp.Services.Coinvest.CoInvestors(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var hopsCmd = &cobra.Command{
	Use:   "hops <firm-id>",
	Short: "Firms reachable within a bounded number of hops",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseFirmID(args[0])
		if err != nil {
			return err
		}
		in := coinvest.NetworkInput{FirmID: id}
		in.MaxHops, _ = cmd.Flags().GetInt("max-hops")
		in.MinDeals, _ = cmd.Flags().GetInt("min-deals")
		in.LimitPerHop, _ = cmd.Flags().GetInt("limit-per-hop")
		out, err := theApp.Services.Coinvest.NetworkHops(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var drilldownCmd = &cobra.Command{
	Use:   "drilldown <firm-a> <firm-b>",
	Short: "Deals two firms invested in together",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parseFirmID(args[0])
		if err != nil {
			return err
		}
		b, err := parseFirmID(args[1])
		if err != nil {
			return err
		}
		in := coinvest.DrilldownInput{FirmA: a, FirmB: b}
		in.Limit, _ = cmd.Flags().GetInt("limit")
		out, err := theApp.Services.Coinvest.Drilldown(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func parseFirmID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid firm id %q: %w", s, err)
	}
	return id, nil
}

func init() {
	coInvestorsCmd.Flags().Int("min-deals", 1, "Minimum shared deals")
	coInvestorsCmd.Flags().Int("limit", 0, "Maximum co-investors")
	hopsCmd.Flags().Int("max-hops", 2, "Traversal depth (1-3)")
	hopsCmd.Flags().Int("min-deals", 1, "Minimum shared deals per edge")
	hopsCmd.Flags().Int("limit-per-hop", 0, "Maximum firms per hop")
	drilldownCmd.Flags().Int("limit", 0, "Maximum deals")

	networkCmd.AddCommand(coInvestorsCmd, hopsCmd, drilldownCmd)
	rootCmd.AddCommand(networkCmd)
}
