// Package reconcile applies verified payment events to orders.
package reconcile

import (
	"context"
	"errors"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
	"github.com/James-Hooson/Bonsai-Biz/internal/payment"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

const service = "storefront"

type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUncorrelated Outcome = "uncorrelated"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeCompleted    Outcome = "completed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeFailed       Outcome = "failed"
)

type OrderUpdater interface {
	GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error)
	CompleteOrder(ctx context.Context, id domain.OrderID, c store.Completion) (bool, error)
}

type Reconciler struct {
	orders OrderUpdater
}

func NewReconciler(orders OrderUpdater) *Reconciler {
	return &Reconciler{orders: orders}
}

// Handle must only be given events whose signature has been verified. It never
// fails: the processor is acknowledged whatever happens here, and redelivery
// of an applied event is a no-op.
func (r *Reconciler) Handle(ctx context.Context, evt payment.Event) Outcome {
	if evt.Type != payment.EventCheckoutCompleted {
		return OutcomeIgnored
	}
	if evt.Checkout == nil || evt.Checkout.OrderID == "" {
		logging.Log(logging.Fields{Service: service, EventID: evt.ID, Step: "reconcile", Status: string(OutcomeUncorrelated), Message: "checkout event without order id"})
		return OutcomeUncorrelated
	}
	cs := evt.Checkout
	id := domain.OrderID(cs.OrderID)
	fields := logging.Fields{Service: service, EventID: evt.ID, OrderID: cs.OrderID, SessionID: cs.SessionID, Step: "reconcile"}

	order, err := r.orders.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		fields.Status, fields.Message = string(OutcomeNotFound), "order not found"
		logging.Log(fields)
		return OutcomeNotFound
	}
	if err != nil {
		fields.Status, fields.Error = string(OutcomeFailed), err.Error()
		logging.Log(fields)
		return OutcomeFailed
	}
	if order.Status == domain.OrderStatusCompleted {
		fields.Status, fields.Message = string(OutcomeDuplicate), "order already completed"
		logging.Log(fields)
		return OutcomeDuplicate
	}

	changed, err := r.orders.CompleteOrder(ctx, id, store.Completion{
		TransactionID: transactionID(cs),
		CustomerEmail: cs.CustomerEmail,
	})
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		fields.Status, fields.Message = string(OutcomeNotFound), "order disappeared before update"
		logging.Log(fields)
		return OutcomeNotFound
	case err != nil:
		fields.Status, fields.Error = string(OutcomeFailed), err.Error()
		logging.Log(fields)
		return OutcomeFailed
	case !changed:
		// A concurrent delivery got there first.
		fields.Status = string(OutcomeDuplicate)
		logging.Log(fields)
		return OutcomeDuplicate
	}
	fields.Status, fields.Message = string(OutcomeCompleted), "order marked as completed"
	logging.Log(fields)
	return OutcomeCompleted
}

// transactionID prefers the payment intent; sessions without one (no charge
// captured yet) fall back to the session id so a completed order always has a
// transaction reference.
func transactionID(cs *payment.CheckoutCompleted) string {
	if cs.PaymentIntentID != "" {
		return cs.PaymentIntentID
	}
	return cs.SessionID
}
