package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe implements SessionCreator and EventVerifier against Stripe Checkout.
type Stripe struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripe(apiKey, webhookSecret, currency string) *Stripe {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Stripe{
		api:           client.New(apiKey, nil),
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, p SessionParams) (Session, error) {
	params := s.sessionParams(p)
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) sessionParams(p SessionParams) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		ClientReferenceID:  stripe.String(p.OrderID),
	}
	for _, li := range p.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		if li.Image != "" {
			product.Images = stripe.StringSlice([]string{li.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata(MetadataOrderID, p.OrderID)
	return params
}

// ParseEvent checks the Stripe-Signature header over the untouched body. Only
// checkout-session fields are read, so API version drift is tolerated.
func (s *Stripe) ParseEvent(payload []byte, signatureHeader string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Type != stripe.EventTypeCheckoutSessionCompleted || evt.Data == nil {
		return out, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		// Verified but unreadable: leave Checkout nil so it is acknowledged
		// without action.
		return out, nil
	}
	out.Checkout = checkoutFromSession(&cs)
	return out, nil
}

func checkoutFromSession(cs *stripe.CheckoutSession) *CheckoutCompleted {
	c := &CheckoutCompleted{
		SessionID:     cs.ID,
		OrderID:       cs.Metadata[MetadataOrderID],
		CustomerEmail: cs.CustomerEmail,
	}
	if cs.PaymentIntent != nil {
		c.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		c.CustomerEmail = cs.CustomerDetails.Email
	}
	return c
}
