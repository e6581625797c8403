// Package paymenttest provides signed webhook fixtures and a recording
// SessionCreator for tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/James-Hooson/Bonsai-Biz/internal/payment"
)

// Completion describes a checkout.session.completed delivery.
type Completion struct {
	EventID       string
	SessionID     string
	OrderID       string
	PaymentIntent string
	CustomerEmail string
}

func (c Completion) Payload() []byte {
	session := map[string]any{
		"id":             c.SessionID,
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": "paid",
		"metadata":       map[string]string{},
	}
	if c.OrderID != "" {
		session["metadata"] = map[string]string{payment.MetadataOrderID: c.OrderID}
	}
	if c.PaymentIntent != "" {
		session["payment_intent"] = c.PaymentIntent
	}
	if c.CustomerEmail != "" {
		session["customer_details"] = map[string]any{"email": c.CustomerEmail}
	}
	return EventPayload(c.EventID, payment.EventCheckoutCompleted, session)
}

// EventPayload renders a Stripe event envelope around object.
func EventPayload(eventID, eventType string, object any) []byte {
	data, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-03-31.basil",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Sign returns the Stripe-Signature header value for payload.
func Sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

// Sessions records CreateSession calls and hands out sequential session ids.
type Sessions struct {
	mu    sync.Mutex
	Calls []payment.SessionParams
	Err   error
}

func (s *Sessions) CreateSession(_ context.Context, p payment.SessionParams) (payment.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, p)
	if s.Err != nil {
		return payment.Session{}, s.Err
	}
	id := fmt.Sprintf("cs_test_%d", len(s.Calls))
	return payment.Session{ID: id, URL: "https://checkout.stripe.test/pay/" + id}, nil
}

func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
