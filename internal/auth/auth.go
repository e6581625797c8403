// Package auth turns bearer tokens into a typed Principal at the HTTP edge.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const RoleAdmin Role = "admin"

// DefaultRolesClaim is the namespaced claim the identity provider puts roles in.
const DefaultRolesClaim = "https://zenbonsai.com/roles"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Principal struct {
	Subject string
	Email   string
	Roles   []Role
}

func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

type Verifier struct {
	secret     []byte
	rolesClaim string
}

func NewVerifier(secret []byte, rolesClaim string) *Verifier {
	if rolesClaim == "" {
		rolesClaim = DefaultRolesClaim
	}
	return &Verifier{secret: secret, rolesClaim: rolesClaim}
}

// Verify accepts HS256 tokens with a subject and an expiry.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	roles, err := parseRoles(claims[v.rolesClaim])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := claims["email"].(string)
	return Principal{Subject: sub, Email: email, Roles: roles}, nil
}

func parseRoles(raw any) ([]Role, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []Role{Role(v)}, nil
	case []any:
		roles := make([]Role, 0, len(v))
		for _, r := range v {
			s, ok := r.(string)
			if !ok {
				return nil, errors.New("roles claim must contain strings")
			}
			roles = append(roles, Role(s))
		}
		return roles, nil
	default:
		return nil, errors.New("roles claim has unexpected type")
	}
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

func bearerToken(r *http.Request) (string, error) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// Middleware rejects requests without a valid token and stores the principal
// in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing authorization")
			return
		}
		p, err := v.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing authorization")
				return
			}
			if !p.HasRole(role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
