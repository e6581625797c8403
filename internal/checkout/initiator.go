// Package checkout prices a cart against the catalog, records a pending order
// and opens a payment session correlated to it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
	"github.com/James-Hooson/Bonsai-Biz/internal/payment"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

const service = "storefront"

type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Request struct {
	Items         []ItemRequest
	CustomerEmail string
	// IdempotencyKey is optional. A repeated key returns the first order's
	// session and ignores Items.
	IdempotencyKey string
}

type Result struct {
	OrderID   domain.OrderID
	SessionID string
	URL       string
}

// ValidationError is a problem with the caller's input; its message is safe to
// return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ProductReader interface {
	GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error)
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, in store.NewOrder) (domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	AttachSession(ctx context.Context, id domain.OrderID, sessionID, sessionURL string) error
}

type Initiator struct {
	products ProductReader
	orders   OrderWriter
	sessions payment.SessionCreator
	baseURL  string
}

func NewInitiator(products ProductReader, orders OrderWriter, sessions payment.SessionCreator, baseURL string) *Initiator {
	return &Initiator{
		products: products,
		orders:   orders,
		sessions: sessions,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Initiate validates items in request order and stops at the first bad one.
// Nothing is persisted until every item has been priced. A failure after the
// order is written leaves it pending without a session; it is not rolled back.
func (in *Initiator) Initiate(ctx context.Context, req Request) (Result, error) {
	if req.IdempotencyKey != "" {
		res, found, err := in.replay(ctx, req.IdempotencyKey)
		if err != nil || found {
			return res, err
		}
	}
	if len(req.Items) == 0 {
		return Result{}, invalid("Items array is required")
	}

	lineItems := make([]payment.LineItem, 0, len(req.Items))
	snapshot := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return Result{}, invalid("Invalid quantity for product %s", it.ProductID)
		}
		p, err := in.products.GetProduct(ctx, domain.ProductID(it.ProductID))
		if errors.Is(err, domain.ErrProductNotFound) {
			return Result{}, invalid("Product %s not found", it.ProductID)
		}
		if err != nil {
			return Result{}, fmt.Errorf("load product %s: %w", it.ProductID, err)
		}
		if !p.InStock {
			return Result{}, invalid("Product %s is out of stock", p.Name)
		}

		lineItems = append(lineItems, payment.LineItem{
			Name:        p.Name,
			Description: p.Description,
			Image:       p.Image,
			UnitAmount:  domain.MinorUnits(p.Price),
			Quantity:    int64(it.Quantity),
		})
		snapshot = append(snapshot, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}

	order, err := in.orders.CreateOrder(ctx, store.NewOrder{CustomerEmail: req.CustomerEmail, Items: snapshot, IdempotencyKey: req.IdempotencyKey})
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key won the insert.
		res, found, rerr := in.replay(ctx, req.IdempotencyKey)
		if rerr != nil || found {
			return res, rerr
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("create order: %w", err)
	}
	logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), Step: "create_order", Status: string(order.Status)})

	return in.openSession(ctx, order, lineItems)
}

// replay looks up the order recorded under key. An order whose session was
// never opened gets one now, built from its stored item snapshot.
func (in *Initiator) replay(ctx context.Context, key string) (Result, bool, error) {
	order, err := in.orders.GetOrderByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("look up idempotency key: %w", err)
	}
	if order.PaymentSessionID != "" || order.Status != domain.OrderStatusPending {
		logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), SessionID: order.PaymentSessionID, Step: "idempotent_replay", Status: string(order.Status)})
		return Result{OrderID: order.ID, SessionID: order.PaymentSessionID, URL: order.PaymentSessionURL}, true, nil
	}

	lineItems := make([]payment.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		lineItems = append(lineItems, payment.LineItem{
			Name:       it.Name,
			UnitAmount: domain.MinorUnits(it.UnitPrice),
			Quantity:   int64(it.Quantity),
		})
	}
	logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), Step: "idempotent_replay", Status: "resume_session"})
	res, err := in.openSession(ctx, order, lineItems)
	return res, true, err
}

func (in *Initiator) openSession(ctx context.Context, order domain.Order, lineItems []payment.LineItem) (Result, error) {
	sess, err := in.sessions.CreateSession(ctx, payment.SessionParams{
		OrderID:       string(order.ID),
		LineItems:     lineItems,
		SuccessURL:    in.successURL(order.ID),
		CancelURL:     in.baseURL + "/",
		CustomerEmail: order.CustomerEmail,
	})
	if err != nil {
		logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), Step: "create_session", Status: "failed", Message: "order left pending without session", Error: err.Error()})
		return Result{}, fmt.Errorf("create payment session for order %s: %w", order.ID, err)
	}

	if err := in.orders.AttachSession(ctx, order.ID, sess.ID, sess.URL); err != nil {
		logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), SessionID: sess.ID, Step: "attach_session", Status: "failed", Error: err.Error()})
		return Result{}, fmt.Errorf("attach session to order %s: %w", order.ID, err)
	}
	logging.Log(logging.Fields{Service: service, OrderID: string(order.ID), SessionID: sess.ID, Step: "create_session", Status: "ok"})

	return Result{OrderID: order.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

// The session id placeholder is filled in by the payment page.
func (in *Initiator) successURL(id domain.OrderID) string {
	return in.baseURL + "/success?order_id=" + url.QueryEscape(string(id)) + "&session_id={CHECKOUT_SESSION_ID}"
}
