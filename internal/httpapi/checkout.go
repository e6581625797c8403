package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/James-Hooson/Bonsai-Biz/internal/checkout"
	"github.com/James-Hooson/Bonsai-Biz/pkg/idempotency"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

const maxCheckoutBody = 1 << 20

type createCheckoutSessionRequest struct {
	Items     []checkout.ItemRequest `json:"items"`
	UserEmail string                 `json:"userEmail"`
}

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	key, err := idempotency.Key(r)
	if err != nil {
		s.countCheckout("invalid")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("%s must be at most %d characters", idempotency.Header, idempotency.MaxLength)})
		return
	}

	var req createCheckoutSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckoutBody)).Decode(&req); err != nil {
		s.countCheckout("invalid")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	res, err := s.opts.Checkout.Initiate(ctx, checkout.Request{Items: req.Items, CustomerEmail: req.UserEmail, IdempotencyKey: key})
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		s.countCheckout("invalid")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Message})
		return
	case err != nil:
		s.countCheckout("error")
		logging.Log(logging.Fields{Service: service, Step: "create_checkout_session", Status: "error", Error: err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to create checkout session"})
		return
	}
	s.countCheckout("ok")
	writeJSON(w, http.StatusOK, map[string]any{"url": res.URL})
}

func (s *Server) countCheckout(result string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Checkouts.WithLabelValues(result).Inc()
	}
}
