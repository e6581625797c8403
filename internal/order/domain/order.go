package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderID string
type ProductID string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product already exists")
)

// ErrDuplicateIdempotencyKey is returned when another order already holds the
// idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

// Valid reports whether s is one of the two lifecycle states.
func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s == OrderStatusCompleted
}

// CanTransition allows pending->completed plus same-state writes; nothing ever
// goes back to pending.
func CanTransition(from, to OrderStatus) bool {
	switch {
	case from == to:
		return from.Valid()
	case from == OrderStatusPending && to == OrderStatusCompleted:
		return true
	}
	return false
}

// OrderItem is a priced snapshot taken at order creation; later catalog edits
// do not touch it.
type OrderItem struct {
	ProductID ProductID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (it OrderItem) MarshalJSON() ([]byte, error) {
	type plain OrderItem
	return json.Marshal(struct {
		plain
		UnitPrice json.Number `json:"unitPrice"`
	}{plain: plain(it), UnitPrice: json.Number(it.UnitPrice.String())})
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID                   OrderID     `json:"id"`
	Status               OrderStatus `json:"status"`
	CustomerEmail        string      `json:"userEmail,omitempty"`
	Items                []OrderItem `json:"items"`
	PaymentSessionID     string      `json:"paymentSessionId,omitempty"`
	PaymentTransactionID string      `json:"paymentTransactionId,omitempty"`

	// PaymentSessionURL and IdempotencyKey let a retried checkout return the
	// original session. They stay server side.
	PaymentSessionURL string `json:"-"`
	IdempotencyKey    string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Abandoned: still pending and never got a payment session.
func (o Order) Abandoned() bool {
	return o.Status == OrderStatusPending && o.PaymentSessionID == ""
}
