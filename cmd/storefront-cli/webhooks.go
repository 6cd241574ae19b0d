package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/config"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/postgres"
	"github.com/spf13/cobra"
)

func webhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Show recently received gateway notifications from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is not set, the webhook journal is disabled")
			}
			orderID, _ := cmd.Flags().GetString("order")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			db, err := postgres.Connect(ctx, cfg.PostgresDSN, "storefront-cli")
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := (&orders.Journal{DB: db}).Recent(ctx, orderID, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECEIVED\tEVENT\tKEY\tCHARGE\tORDER\tOUTCOME")
			for _, e := range entries {
				outcome := "-"
				if e.ProcessedAt != nil {
					outcome = string(e.Outcome)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ReceivedAt.Format(time.RFC3339), e.EventID, e.Key, e.ChargeID, e.OrderID, outcome)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("order", "o", "", "Only events for this order id")
	cmd.Flags().IntP("limit", "n", 20, "Maximum rows")
	return cmd
}
