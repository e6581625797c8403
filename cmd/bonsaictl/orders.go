package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
)

func ordersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect orders",
	}
	cmd.AddCommand(ordersShowCmd(opts), ordersAbandonedCmd(opts))
	return cmd
}

func ordersShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [order-id]",
		Short: "Print one order as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(s *store.Postgres) error {
				return showOrder(cmd.Context(), cmd.OutOrStdout(), s, domain.OrderID(args[0]))
			})
		},
	}
}

// Abandoned orders are reported only; nothing is swept or cancelled.
func ordersAbandonedCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "abandoned",
		Short: "List pending orders that never got a payment session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(s *store.Postgres) error {
				return listAbandoned(cmd.Context(), cmd.OutOrStdout(), s, time.Now().Add(-olderThan))
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "only orders created before now minus this")
	return cmd
}

func showOrder(ctx context.Context, out io.Writer, orders store.OrderStore, id domain.OrderID) error {
	o, err := orders.GetOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("order %s: %w", id, err)
	}
	view := struct {
		domain.Order
		Total string `json:"total"`
	}{Order: o, Total: o.Total().StringFixed(2)}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func listAbandoned(ctx context.Context, out io.Writer, orders store.OrderStore, cutoff time.Time) error {
	list, err := orders.ListAbandoned(ctx, cutoff)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tITEMS\tTOTAL")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.ID, o.CreatedAt.Format(time.RFC3339), len(o.Items), o.Total().StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d abandoned\n", len(list))
	return nil
}
