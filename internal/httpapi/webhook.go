package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

// Event payloads carrying full line item and customer detail run past 64 KiB.
const maxWebhookBody = 512 << 10

const signatureHeader = "Stripe-Signature"

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logging.Log(logging.Fields{Service: service, Step: "stripe_webhook", Status: "rejected", Message: "payload too large"})
		writeText(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}
	if err != nil || len(body) == 0 {
		writeText(w, http.StatusBadRequest, "No raw body available")
		return
	}

	// Nothing in the body is read before this succeeds.
	evt, err := s.opts.Verifier.ParseEvent(body, r.Header.Get(signatureHeader))
	if err != nil {
		logging.Log(logging.Fields{Service: service, Step: "stripe_webhook", Status: "rejected", Error: err.Error()})
		writeText(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	// Any verified event is acknowledged; the outcome only feeds logs and metrics.
	outcome := s.opts.Reconciler.Handle(ctx, evt)
	if s.opts.Metrics != nil {
		s.opts.Metrics.Reconciles.WithLabelValues(string(outcome)).Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
