package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCompleted))
	assert.True(t, CanTransition(OrderStatusCompleted, OrderStatusCompleted))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatus("refunded"), OrderStatusPending))
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"124.99": 12499,
		"0.005":  1,
		"19.999": 2000,
		"10":     1000,
		"0":      0,
	}
	for in, want := range cases {
		assert.Equal(t, want, MinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestOrderTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("124.99")},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("45.50")},
	}}
	assert.True(t, decimal.RequireFromString("295.48").Equal(o.Total()))
}

func TestOrderAbandoned(t *testing.T) {
	assert.True(t, Order{Status: OrderStatusPending}.Abandoned())
	assert.False(t, Order{Status: OrderStatusPending, PaymentSessionID: "cs_1"}.Abandoned())
	assert.False(t, Order{Status: OrderStatusCompleted}.Abandoned())
}

func TestOrderItemJSONUsesNumericPrice(t *testing.T) {
	data, err := json.Marshal(OrderItem{ProductID: "p1", Name: "Juniper", Quantity: 2, UnitPrice: decimal.RequireFromString("124.99")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p1","name":"Juniper","quantity":2,"unitPrice":124.99}`, string(data))
}

func TestProductJSONUsesNumericPriceWithoutGlobalSwitch(t *testing.T) {
	data, err := json.Marshal(Product{ID: "p1", Name: "Juniper", Price: decimal.RequireFromString("124.99"), InStock: true})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 124.99, got["price"])
	assert.Equal(t, "Juniper", got["name"])

	assert.False(t, decimal.MarshalJSONWithoutQuotes)
	plain, err := json.Marshal(decimal.RequireFromString("1.50"))
	require.NoError(t, err)
	assert.Equal(t, `"1.5"`, string(plain))
}

func TestOrderJSONHidesCheckoutReplayFields(t *testing.T) {
	data, err := json.Marshal(Order{ID: "o1", Status: OrderStatusPending, PaymentSessionURL: "https://pay.test/cs_1", IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pay.test")
	assert.NotContains(t, string(data), "k1")
}

func TestOrderItemJSONRoundTrip(t *testing.T) {
	in := OrderItem{ProductID: "p1", Name: "Juniper", Quantity: 2, UnitPrice: decimal.RequireFromString("124.99")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out OrderItem
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.UnitPrice.Equal(out.UnitPrice))
	assert.Equal(t, in.Quantity, out.Quantity)
}
