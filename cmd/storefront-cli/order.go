package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/app"
	"github.com/ariefcatur/go-omise-storefront/internal/checkout"
	"github.com/ariefcatur/go-omise-storefront/internal/config"
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	"github.com/spf13/cobra"
)

type orderReport struct {
	OrderID string            `json:"order_id"`
	Found   bool              `json:"found"`
	Charge  *chargeSummary    `json:"charge,omitempty"`
	Outcome *checkout.Outcome `json:"outcome,omitempty"`
	Notice  string            `json:"notice"`
}

type chargeSummary struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order [orderId]",
		Short: "Look up the charge of an order and show how the storefront classifies it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			rep, err := lookupOrder(ctx, app.NewGateway(cfg), args[0])
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), rep, asJSON)
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().Duration("timeout", 15*time.Second, "Gateway timeout")
	return cmd
}

type chargeSearcher interface {
	SearchCharges(ctx context.Context, orderID string) ([]gateway.Charge, error)
}

func lookupOrder(ctx context.Context, gw chargeSearcher, orderID string) (orderReport, error) {
	rep := orderReport{OrderID: orderID}
	charges, err := gw.SearchCharges(ctx, orderID)
	if err != nil {
		return rep, fmt.Errorf("search charges: %w", err)
	}
	if len(charges) == 0 {
		rep.Notice = checkout.ErrorNotice(orderID, checkout.ErrOrderNotFound)
		return rep, nil
	}
	ch := charges[0]
	out := checkout.Classify(&ch, orderID, true)
	rep.Found = true
	rep.Charge = &chargeSummary{
		ID:       ch.ID,
		Status:   string(ch.Status),
		Amount:   ch.Amount,
		Currency: ch.Currency,
		Source:   ch.Source.Kind.String(),
	}
	rep.Outcome = &out
	rep.Notice = out.Notice()
	return rep, nil
}

func printOrder(w io.Writer, rep orderReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "Order:    %s\n", rep.OrderID)
	if !rep.Found {
		fmt.Fprintf(w, "Status:   not found\n")
		return nil
	}
	fmt.Fprintf(w, "Charge:   %s (%s)\n", rep.Charge.ID, rep.Charge.Status)
	fmt.Fprintf(w, "Amount:   %d %s\n", rep.Charge.Amount, rep.Charge.Currency)
	fmt.Fprintf(w, "Source:   %s\n", rep.Charge.Source)
	fmt.Fprintf(w, "Outcome:  %s\n", rep.Outcome.Status)
	if rep.Outcome.PaymentLink != "" {
		fmt.Fprintf(w, "Link:     %s\n", rep.Outcome.PaymentLink)
	}
	fmt.Fprintf(w, "Notice:   %s\n", rep.Notice)
	return nil
}
