// Package httpapi exposes the storefront over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/James-Hooson/Bonsai-Biz/internal/auth"
	"github.com/James-Hooson/Bonsai-Biz/internal/catalog"
	"github.com/James-Hooson/Bonsai-Biz/internal/checkout"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/payment"
	"github.com/James-Hooson/Bonsai-Biz/internal/reconcile"
	"github.com/James-Hooson/Bonsai-Biz/pkg/idempotency"
	"github.com/James-Hooson/Bonsai-Biz/pkg/metrics"
)

const service = "storefront"

type CheckoutInitiator interface {
	Initiate(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type EventHandler interface {
	Handle(ctx context.Context, evt payment.Event) reconcile.Outcome
}

type OrderReader interface {
	GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Checkout   CheckoutInitiator
	Verifier   payment.EventVerifier
	Reconciler EventHandler
	Catalog    *catalog.Service
	Orders     OrderReader
	Health     Pinger
	// Admin is optional; without it the /admin routes are not mounted.
	Admin *auth.Verifier

	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer

	CORSOrigins []string
	// TrustedProxies may set the client address through forwarding headers.
	// Requests from any other peer are keyed on RemoteAddr.
	TrustedProxies []netip.Prefix
	RateRPS        float64
	RateBurst      int
	RequestTimeout time.Duration
}

type Server struct {
	opts    Options
	limiter *ipRateLimiter
}

func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{opts: opts, limiter: newIPRateLimiter(opts.RateRPS, opts.RateBurst)}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(realIPFrom(s.opts.TrustedProxies))
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.opts.Gatherer))
	}

	// The processor calls the webhook server to server, so it gets neither CORS
	// nor the browser rate limit.
	r.Handle("/stripeWebhook", s.instrument("stripe_webhook", http.HandlerFunc(s.handleStripeWebhook)))

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotency.Header},
			MaxAge:         300,
		}))

		r.With(s.limiter.middleware).Handle("/createCheckoutSession", s.instrument("create_checkout_session", http.HandlerFunc(s.handleCreateCheckoutSession)))

		r.Method(http.MethodGet, "/products", s.instrument("list_products", http.HandlerFunc(s.handleListProducts)))
		r.Method(http.MethodGet, "/products/{id}", s.instrument("get_product", http.HandlerFunc(s.handleGetProduct)))
		r.Method(http.MethodGet, "/orders/{id}", s.instrument("get_order", http.HandlerFunc(s.handleGetOrder)))

		if s.opts.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.opts.Admin.Middleware, auth.RequireRole(auth.RoleAdmin))
				r.Method(http.MethodPost, "/products", s.instrument("admin_create_product", http.HandlerFunc(s.handleCreateProduct)))
				r.Method(http.MethodPut, "/products/{id}", s.instrument("admin_update_product", http.HandlerFunc(s.handleUpdateProduct)))
				r.Method(http.MethodDelete, "/products/{id}", s.instrument("admin_delete_product", http.HandlerFunc(s.handleDeleteProduct)))
			})
		}
	})
	return r
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.opts.Metrics == nil {
		return h
	}
	return s.opts.Metrics.Instrument(name, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}
