// Package store holds the data-access contracts shared by checkout, reconcile
// and catalog, with a Postgres and an in-memory implementation.
package store

import (
	"context"
	"time"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
)

type ProductStore interface {
	GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ProductID) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, in NewOrder) (domain.Order, error)
	GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error)
	// GetOrderByIdempotencyKey returns domain.ErrOrderNotFound when no order
	// holds the key.
	GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	AttachSession(ctx context.Context, id domain.OrderID, sessionID, sessionURL string) error
	// CompleteOrder reports whether this call moved the order out of pending.
	// An already completed order is left as is and reported as false.
	CompleteOrder(ctx context.Context, id domain.OrderID, c Completion) (bool, error)
	ListAbandoned(ctx context.Context, olderThan time.Time) ([]domain.Order, error)
}

// Store is what cmd/storefront wires: both collections plus a liveness probe.
type Store interface {
	ProductStore
	OrderStore
	Ping(ctx context.Context) error
}

type NewOrder struct {
	CustomerEmail string
	Items         []domain.OrderItem
	// IdempotencyKey is optional; a second order with the same key fails with
	// domain.ErrDuplicateIdempotencyKey.
	IdempotencyKey string
}

type Completion struct {
	TransactionID string
	// CustomerEmail is only written when the order has no email yet.
	CustomerEmail string
}
