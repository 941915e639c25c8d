package main

import (
	"fmt"

	"github.com/spf13/cobra"

	types "github.com/yungbote/dealgraph-backend/internal/domain"
	"github.com/yungbote/dealgraph-backend/internal/modules/catalog"
	dgerrors "github.com/yungbote/dealgraph-backend/internal/pkg/errors"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Entity, link, edge and quarantine counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := theApp.Services.Catalog.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <firm|fund|deal|company|person> <id>",
	Short: "Show one canonical entity with its relations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUUIDs(args[1:])
		if err != nil {
			return err
		}
		ctx, uc := cmd.Context(), theApp.Services.Catalog
		var out any
		switch args[0] {
		case types.KindFirm:
			out, err = uc.GetFirm(ctx, id[0])
		case types.KindFund:
			out, err = uc.GetFund(ctx, id[0])
		case types.KindDeal:
			out, err = uc.GetDeal(ctx, id[0])
		case types.KindCompany:
			out, err = uc.GetCompany(ctx, id[0])
		case types.KindPerson:
			out, err = uc.GetPerson(ctx, id[0])
		default:
			return fmt.Errorf("unknown entity kind %q: %w", args[0], dgerrors.ErrInvalidArgument)
		}
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <firm|fund|deal|company|person>",
	Short: "Page through canonical entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var p catalog.PageRequest
		p.Page, _ = f.GetInt("page")
		p.PageSize, _ = f.GetInt("page-size")
		p.Sort, _ = f.GetString("sort")
		search, _ := f.GetString("search")
		country, _ := f.GetString("country")
		industry, _ := f.GetString("industry")

		ctx, uc := cmd.Context(), theApp.Services.Catalog
		var (
			out any
			err error
		)
		switch args[0] {
		case types.KindFirm:
			firmType, _ := f.GetString("firm-type")
			out, err = uc.ListFirms(ctx, catalog.FirmFilter{FirmType: firmType, Country: country, Search: search}, p)
		case types.KindFund:
			strategy, _ := f.GetString("strategy")
			out, err = uc.ListFunds(ctx, catalog.FundFilter{Strategy: strategy, Search: search}, p)
		case types.KindDeal:
			dealType, _ := f.GetString("deal-type")
			out, err = uc.ListDeals(ctx, catalog.DealFilter{DealType: dealType, Industry: industry, Country: country}, p)
		case types.KindCompany:
			out, err = uc.ListCompanies(ctx, catalog.CompanyFilter{Industry: industry, Country: country, Search: search}, p)
		case types.KindPerson:
			out, err = uc.ListPersons(ctx, catalog.PersonFilter{Country: country, Search: search}, p)
		default:
			return fmt.Errorf("unknown entity kind %q: %w", args[0], dgerrors.ErrInvalidArgument)
		}
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	f := listCmd.Flags()
	f.Int("page", 1, "Page number")
	f.Int("page-size", 0, "Items per page (1-100)")
	f.String("sort", "", "Sort key")
	f.String("search", "", "Name substring")
	f.String("country", "", "Country")
	f.String("industry", "", "Industry (deal, company)")
	f.String("firm-type", "", "Firm type (firm)")
	f.String("strategy", "", "Strategy (fund)")
	f.String("deal-type", "", "Deal type (deal)")

	rootCmd.AddCommand(statsCmd, getCmd, listCmd)
}
