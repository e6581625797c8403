// Package payment is the boundary to the hosted payment processor: opening
// checkout sessions and turning signed webhook deliveries into typed events.
package payment

import (
	"context"
	"errors"
)

const EventCheckoutCompleted = "checkout.session.completed"

// MetadataOrderID is the session metadata key carrying the order id.
const MetadataOrderID = "orderId"

var ErrInvalidSignature = errors.New("invalid webhook signature")

type LineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64 // minor units
	Quantity    int64
}

type SessionParams struct {
	OrderID       string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

type Session struct {
	ID  string
	URL string
}

type SessionCreator interface {
	CreateSession(ctx context.Context, p SessionParams) (Session, error)
}

// CheckoutCompleted is the part of a completed checkout session the
// reconciler reads.
type CheckoutCompleted struct {
	SessionID       string
	OrderID         string
	PaymentIntentID string
	CustomerEmail   string
}

type Event struct {
	ID       string
	Type     string
	Checkout *CheckoutCompleted
}

// EventVerifier authenticates a raw webhook body before any field is read.
type EventVerifier interface {
	ParseEvent(payload []byte, signatureHeader string) (Event, error)
}
