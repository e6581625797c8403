package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/James-Hooson/Bonsai-Biz/pkg/contracts"
	"github.com/James-Hooson/Bonsai-Biz/pkg/kafka"
)

func eventsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read order lifecycle events from Kafka",
	}
	cmd.AddCommand(eventsTailCmd(opts))
	return cmd
}

func eventsTailCmd(opts *rootOptions) *cobra.Command {
	var (
		brokers string
		topic   string
		group   string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events published by the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := kafka.NewClient(brokers)
			if !client.Enabled() {
				return fmt.Errorf("--brokers or KAFKA_BROKERS is required: %w", kafka.ErrDisabled)
			}
			reader := client.NewReader(topic, group)
			defer reader.Close()

			ctx := cmd.Context()
			for n := 0; limit <= 0 || n < limit; n++ {
				msg, err := reader.ReadMessage(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				evt, err := kafka.DecodeEvent(msg)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					continue
				}
				printEvent(cmd.OutOrStdout(), evt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", opts.cfg.KafkaBrokers, "comma separated Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", opts.cfg.KafkaTopic, "topic to read")
	cmd.Flags().StringVar(&group, "group", "bonsaictl", "consumer group id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many events (0 = follow)")
	return cmd
}

func printEvent(out io.Writer, evt contracts.Event) {
	fmt.Fprintf(out, "%s  %-16s order=%s event=%s", evt.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), evt.Type, evt.OrderID, evt.EventID)
	if tx, ok := evt.Payload["payment_transaction_id"]; ok {
		fmt.Fprintf(out, " tx=%v", tx)
	}
	fmt.Fprintln(out)
}
