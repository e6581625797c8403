package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/store"
	"github.com/James-Hooson/Bonsai-Biz/internal/payment/paymenttest"
)

func seedCatalog(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p1", Name: "Juniper", Description: "Classic juniper", Price: decimal.RequireFromString("124.99"), InStock: true},
		{ID: "p2", Name: "Ficus", Price: decimal.RequireFromString("45.50"), InStock: true},
		{ID: "p3", Name: "Maple", Price: decimal.RequireFromString("89.00"), InStock: false},
	} {
		_, err := m.CreateProduct(ctx, p)
		require.NoError(t, err)
	}
}

func newInitiator(t *testing.T) (*Initiator, *store.Memory, *paymenttest.Sessions) {
	t.Helper()
	m := store.NewMemory()
	seedCatalog(t, m)
	sessions := &paymenttest.Sessions{}
	return NewInitiator(m, m, sessions, "https://shop.test/"), m, sessions
}

func abandonedCount(t *testing.T, m *store.Memory) int {
	t.Helper()
	orders, err := m.ListAbandoned(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return len(orders)
}

func TestInitiate_JuniperScenario(t *testing.T) {
	in, m, sessions := newInitiator(t)
	ctx := context.Background()

	res, err := in.Initiate(ctx, Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/pay/cs_test_1", res.URL)

	order, err := m.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "cs_test_1", order.PaymentSessionID)
	assert.Empty(t, order.PaymentTransactionID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, domain.ProductID("p1"), order.Items[0].ProductID)
	assert.Equal(t, "Juniper", order.Items[0].Name)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("124.99").Equal(order.Items[0].UnitPrice))

	require.Len(t, sessions.Calls, 1)
	call := sessions.Calls[0]
	assert.Equal(t, string(res.OrderID), call.OrderID)
	assert.Equal(t, "https://shop.test/success?order_id="+string(res.OrderID)+"&session_id={CHECKOUT_SESSION_ID}", call.SuccessURL)
	assert.Equal(t, "https://shop.test/", call.CancelURL)
	require.Len(t, call.LineItems, 1)
	assert.Equal(t, int64(12499), call.LineItems[0].UnitAmount)
	assert.Equal(t, int64(2), call.LineItems[0].Quantity)
	assert.Equal(t, "Classic juniper", call.LineItems[0].Description)
}

func TestInitiate_TotalsComeFromCatalog(t *testing.T) {
	in, m, _ := newInitiator(t)
	ctx := context.Background()

	res, err := in.Initiate(ctx, Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 3}}})
	require.NoError(t, err)

	order, err := m.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	// 2*124.99 + 3*45.50
	assert.True(t, decimal.RequireFromString("386.48").Equal(order.Total()), order.Total().String())
	assert.Equal(t, domain.ProductID("p1"), order.Items[0].ProductID)
	assert.Equal(t, domain.ProductID("p2"), order.Items[1].ProductID)
}

func TestInitiate_PassesCustomerEmail(t *testing.T) {
	in, m, sessions := newInitiator(t)

	res, err := in.Initiate(context.Background(), Request{Items: []ItemRequest{{ProductID: "p2", Quantity: 1}}, CustomerEmail: "buyer@example.com"})
	require.NoError(t, err)

	order, err := m.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)
	assert.Equal(t, "buyer@example.com", sessions.Calls[0].CustomerEmail)
}

func TestInitiate_Validation(t *testing.T) {
	cases := []struct {
		name  string
		items []ItemRequest
		want  string
	}{
		{"empty", nil, "Items array is required"},
		{"unknown product", []ItemRequest{{ProductID: "ghost", Quantity: 1}}, "Product ghost not found"},
		{"out of stock", []ItemRequest{{ProductID: "p3", Quantity: 1}}, "Product Maple is out of stock"},
		{"zero quantity", []ItemRequest{{ProductID: "p1", Quantity: 0}}, "Invalid quantity for product p1"},
		{"fails on first bad item", []ItemRequest{{ProductID: "p1", Quantity: 1}, {ProductID: "ghost", Quantity: 1}, {ProductID: "p3", Quantity: 1}}, "Product ghost not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, m, sessions := newInitiator(t)

			_, err := in.Initiate(context.Background(), Request{Items: tc.items})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.want, verr.Message)
			assert.Zero(t, abandonedCount(t, m), "no order may be persisted")
			assert.Zero(t, sessions.Count(), "no session may be created")
		})
	}
}

func TestInitiate_SessionFailureLeavesPendingOrder(t *testing.T) {
	in, m, sessions := newInitiator(t)
	sessions.Err = errors.New("stripe unavailable")

	_, err := in.Initiate(context.Background(), Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))

	orphans, err := m.ListAbandoned(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, domain.OrderStatusPending, orphans[0].Status)
}

type failingProducts struct{}

func (failingProducts) GetProduct(context.Context, domain.ProductID) (domain.Product, error) {
	return domain.Product{}, errors.New("store unreachable")
}

func TestInitiate_StoreFailureIsInternal(t *testing.T) {
	m := store.NewMemory()
	sessions := &paymenttest.Sessions{}
	in := NewInitiator(failingProducts{}, m, sessions, "https://shop.test")

	_, err := in.Initiate(context.Background(), Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}})
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Zero(t, sessions.Count())
}

func TestInitiate_IdempotencyKeyReplaysFirstSession(t *testing.T) {
	in, m, sessions := newInitiator(t)
	ctx := context.Background()
	req := Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}, IdempotencyKey: "cart-42"}

	first, err := in.Initiate(ctx, req)
	require.NoError(t, err)

	// The replay ignores the body, even one that would fail validation.
	second, err := in.Initiate(ctx, Request{Items: []ItemRequest{{ProductID: "ghost", Quantity: 1}}, IdempotencyKey: "cart-42"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sessions.Count())
	assert.Zero(t, abandonedCount(t, m))

	other, err := in.Initiate(ctx, Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}, IdempotencyKey: "cart-43"})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, other.OrderID)
	assert.Equal(t, 2, sessions.Count())
}

func TestInitiate_IdempotencyKeyResumesAfterSessionFailure(t *testing.T) {
	in, m, sessions := newInitiator(t)
	ctx := context.Background()
	req := Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 2}}, CustomerEmail: "buyer@example.com", IdempotencyKey: "cart-42"}

	sessions.Err = errors.New("stripe unavailable")
	_, err := in.Initiate(ctx, req)
	require.Error(t, err)

	orphans, err := m.ListAbandoned(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	sessions.Err = nil
	res, err := in.Initiate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, orphans[0].ID, res.OrderID, "the retry reuses the pending order")
	assert.Equal(t, "cs_test_2", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/pay/cs_test_2", res.URL)
	assert.Zero(t, abandonedCount(t, m))

	order, err := m.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", order.PaymentSessionID)

	call := sessions.Calls[1]
	assert.Equal(t, string(res.OrderID), call.OrderID)
	assert.Equal(t, "buyer@example.com", call.CustomerEmail)
	require.Len(t, call.LineItems, 1)
	assert.Equal(t, int64(12499), call.LineItems[0].UnitAmount)
	assert.Equal(t, int64(2), call.LineItems[0].Quantity)
}

// lateKeyOrders misses the first key lookup, as if a concurrent request
// inserted the order between the lookup and the insert.
type lateKeyOrders struct {
	*store.Memory
	lookups int
}

func (o *lateKeyOrders) GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	o.lookups++
	if o.lookups == 1 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o.Memory.GetOrderByIdempotencyKey(ctx, key)
}

func TestInitiate_IdempotencyKeyInsertRace(t *testing.T) {
	m := store.NewMemory()
	seedCatalog(t, m)
	ctx := context.Background()

	winner, err := m.CreateOrder(ctx, store.NewOrder{Items: []domain.OrderItem{{ProductID: "p1", Name: "Juniper", Quantity: 1, UnitPrice: decimal.RequireFromString("124.99")}}, IdempotencyKey: "cart-42"})
	require.NoError(t, err)
	require.NoError(t, m.AttachSession(ctx, winner.ID, "cs_winner", "https://checkout.stripe.test/pay/cs_winner"))

	sessions := &paymenttest.Sessions{}
	orders := &lateKeyOrders{Memory: m}
	in := NewInitiator(m, orders, sessions, "https://shop.test")

	res, err := in.Initiate(ctx, Request{Items: []ItemRequest{{ProductID: "p1", Quantity: 1}}, IdempotencyKey: "cart-42"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.OrderID)
	assert.Equal(t, "https://checkout.stripe.test/pay/cs_winner", res.URL)
	assert.Zero(t, sessions.Count())
	assert.Equal(t, 2, orders.lookups)
}
