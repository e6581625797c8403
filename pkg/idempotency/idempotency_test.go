package idempotency

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/create-checkout-session", nil)
	key, err := Key(r)
	require.NoError(t, err)
	assert.Empty(t, key)

	r.Header.Set(Header, "  cart-42 ")
	key, err = Key(r)
	require.NoError(t, err)
	assert.Equal(t, "cart-42", key)

	r.Header.Set(Header, strings.Repeat("k", MaxLength))
	_, err = Key(r)
	assert.NoError(t, err)

	r.Header.Set(Header, strings.Repeat("k", MaxLength+1))
	_, err = Key(r)
	assert.ErrorIs(t, err, ErrKeyTooLong)
}
