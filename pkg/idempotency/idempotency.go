// Package idempotency reads the client-chosen key that lets a checkout be
// retried without opening a second order.
package idempotency

import (
	"errors"
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// MaxLength bounds the stored key.
const MaxLength = 255

var ErrKeyTooLong = errors.New("idempotency key too long")

// Key returns the trimmed header value, or "" when the client sent none.
func Key(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(Header))
	if len(key) > MaxLength {
		return "", ErrKeyTooLong
	}
	return key, nil
}
