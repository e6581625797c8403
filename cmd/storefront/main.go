package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/James-Hooson/Bonsai-Biz/internal/auth"
	"github.com/James-Hooson/Bonsai-Biz/internal/catalog"
	"github.com/James-Hooson/Bonsai-Biz/internal/checkout"
	"github.com/James-Hooson/Bonsai-Biz/internal/config"
	"github.com/James-Hooson/Bonsai-Biz/internal/httpapi"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
	"github.com/James-Hooson/Bonsai-Biz/internal/payment"
	"github.com/James-Hooson/Bonsai-Biz/internal/reconcile"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
	"github.com/James-Hooson/Bonsai-Biz/pkg/metrics"
)

func main() {
	cfg := config.Load()
	if err := cfg.ValidateStorefront(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("storefront: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	return store.NewPostgres(pool, cfg.KafkaTopic), pool.Close, nil
}

func seedCatalog(ctx context.Context, products store.ProductStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	items, err := catalog.LoadSeed(f)
	if err != nil {
		return err
	}
	res, err := catalog.Seed(ctx, products, items)
	if err != nil {
		return err
	}
	logging.Log(logging.Fields{Service: "storefront", Step: "seed", Status: "ok", Count: res.Created + res.Updated, Message: "catalog seeded from " + path})
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedFile != "" {
		if err := seedCatalog(ctx, st, cfg.SeedFile); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	stripe := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Currency)
	opts := httpapi.Options{
		Checkout:       checkout.NewInitiator(st, st, stripe, cfg.BaseURL),
		Verifier:       stripe,
		Reconciler:     reconcile.NewReconciler(st),
		Catalog:        catalog.NewService(st),
		Orders:         st,
		Health:         st,
		Metrics:        metrics.NewServerMetrics("storefront", reg),
		Gatherer:       reg,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: proxies,
		RateRPS:        cfg.RateRPS,
		RateBurst:      cfg.RateBurst,
		RequestTimeout: cfg.RequestTimeout,
	}
	if cfg.AdminEnabled() {
		opts.Admin = auth.NewVerifier([]byte(cfg.AdminJWTSecret), cfg.RolesClaim)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.New(opts).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Log(logging.Fields{Service: "storefront", Step: "startup", Status: "listening", Message: fmt.Sprintf("listening on :%s (STORE=%s, admin=%v)", cfg.Port, cfg.Store, cfg.AdminEnabled())})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Log(logging.Fields{Service: "storefront", Step: "shutdown", Status: "draining"})
	return srv.Shutdown(shutdownCtx)
}
