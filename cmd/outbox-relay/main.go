package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/James-Hooson/Bonsai-Biz/internal/config"
	"github.com/James-Hooson/Bonsai-Biz/pkg/kafka"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
	"github.com/James-Hooson/Bonsai-Biz/pkg/outbox"
)

func main() {
	cfg := config.Load()
	if err := cfg.ValidateRelay(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(connectCtx)
	}
	cancel()
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	writer := kafka.NewClient(cfg.KafkaBrokers).NewWriter()
	defer writer.Close()

	relay := &outbox.Relay{
		DB:        pool,
		Publisher: &kafka.OutboxPublisher{Writer: writer},
		Batch:     cfg.OutboxBatch,
		Interval:  cfg.OutboxInterval,
	}

	logging.Log(logging.Fields{Service: "outbox-relay", Step: "startup", Status: "running", Message: "relaying outbox to " + cfg.KafkaBrokers})
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay: %v", err)
	}
}
