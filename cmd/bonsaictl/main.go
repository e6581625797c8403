package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/James-Hooson/Bonsai-Biz/internal/config"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
)

var Version = "dev"

type rootOptions struct {
	cfg         config.Config
	databaseURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}
	rootCmd := &cobra.Command{
		Use:           "bonsaictl",
		Short:         "Operator tool for the Bonsai storefront database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", opts.cfg.DatabaseURL, "Postgres connection string (defaults to $DATABASE_URL)")

	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(productsCmd(opts))
	rootCmd.AddCommand(ordersCmd(opts))
	rootCmd.AddCommand(eventsCmd(opts))
	return rootCmd
}

// withStore connects, runs fn and closes the pool.
func (o *rootOptions) withStore(ctx context.Context, fn func(*store.Postgres) error) error {
	if o.databaseURL == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, o.databaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(connectCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return fn(store.NewPostgres(pool, o.cfg.KafkaTopic))
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the products, orders and outbox tables if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(s *store.Postgres) error {
				if err := s.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}
