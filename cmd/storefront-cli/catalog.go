package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ariefcatur/go-omise-storefront/internal/app"
	"github.com/ariefcatur/go-omise-storefront/internal/config"
	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the items for sale with their display prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cat, money, err := app.NewCatalog(cfg)
			if err != nil {
				return err
			}
			items, err := cat.List()
			if err != nil {
				return fmt.Errorf("list %s: %w", cfg.AssetsDir, err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ITEM\tMINOR UNITS\tPRICE")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", it.ID, it.PriceMinor, money.Format(it.PriceMinor))
			}
			return tw.Flush()
		},
	}
}
