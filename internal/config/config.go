// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/James-Hooson/Bonsai-Biz/internal/auth"
	"github.com/James-Hooson/Bonsai-Biz/pkg/contracts"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port  string
	Store string

	DatabaseURL string
	// SeedFile, when set, is upserted into the catalog at startup.
	SeedFile string

	StripeSecretKey     string
	StripeWebhookSecret string
	BaseURL             string
	Currency            string

	AdminJWTSecret string
	RolesClaim     string

	CORSOrigins []string
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP headers
	// are believed. Empty means the client address is always the TCP peer.
	TrustedProxies []string
	RateRPS        float64
	RateBurst      int
	RequestTimeout time.Duration

	KafkaBrokers   string
	KafkaTopic     string
	OutboxBatch    int
	OutboxInterval time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SEED_FILE", "")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("ADMIN_JWT_SECRET", "")
	v.SetDefault("ROLES_CLAIM", auth.DefaultRolesClaim)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("RATE_RPS", 2.0)
	v.SetDefault("RATE_BURST", 5)
	v.SetDefault("REQUEST_TIMEOUT_MS", 10000)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", contracts.DefaultTopic)
	v.SetDefault("OUTBOX_BATCH", 100)
	v.SetDefault("OUTBOX_INTERVAL_MS", 1000)
	return v
}

// Load reads every key with its default. It does not check required keys; use
// the Validate methods for the binary being started.
func Load() Config {
	v := newViper()
	return Config{
		Port:                v.GetString("PORT"),
		Store:               strings.ToLower(v.GetString("STORE")),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		SeedFile:            v.GetString("SEED_FILE"),
		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		BaseURL:             v.GetString("BASE_URL"),
		Currency:            v.GetString("CURRENCY"),
		AdminJWTSecret:      v.GetString("ADMIN_JWT_SECRET"),
		RolesClaim:          v.GetString("ROLES_CLAIM"),
		CORSOrigins:         splitCSV(v.GetString("CORS_ORIGINS")),
		TrustedProxies:      splitCSV(v.GetString("TRUSTED_PROXIES")),
		RateRPS:             v.GetFloat64("RATE_RPS"),
		RateBurst:           v.GetInt("RATE_BURST"),
		RequestTimeout:      time.Duration(v.GetInt("REQUEST_TIMEOUT_MS")) * time.Millisecond,
		KafkaBrokers:        v.GetString("KAFKA_BROKERS"),
		KafkaTopic:          v.GetString("KAFKA_TOPIC"),
		OutboxBatch:         v.GetInt("OUTBOX_BATCH"),
		OutboxInterval:      time.Duration(v.GetInt("OUTBOX_INTERVAL_MS")) * time.Millisecond,
	}
}

func (c Config) ValidateStorefront() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, missing("DATABASE_URL"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, missing("STRIPE_SECRET_KEY"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, missing("STRIPE_WEBHOOK_SECRET"))
	}
	if c.BaseURL == "" {
		errs = append(errs, missing("BASE_URL"))
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("RATE_RPS and RATE_BURST must be positive"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. Entries are CIDRs or single
// addresses.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c Config) ValidateRelay() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, missing("DATABASE_URL"))
	}
	if c.KafkaBrokers == "" {
		errs = append(errs, missing("KAFKA_BROKERS"))
	}
	return errors.Join(errs...)
}

// AdminEnabled reports whether the admin catalog routes should be mounted.
func (c Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}

func missing(key string) error {
	return fmt.Errorf("%s is required", key)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
