// Package mw contains HTTP middleware.
package mw

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// OwnerClaimsKey is the context key for owner claims.
	OwnerClaimsKey ContextKey = "owner_claims"
)

// OwnerClaims identifies the authenticated owner.
type OwnerClaims struct {
	OwnerID string
}

// Auth returns a middleware that validates owner bearer tokens. Tokens
// are HMAC-signed JWTs whose subject must match the configured owner ID.
func Auth(signKey []byte, ownerID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := validateOwnerToken(signKey, ownerID, token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateOwnerToken(signKey []byte, ownerID, tokenString string) (*OwnerClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	if sub != ownerID {
		return nil, fmt.Errorf("subject mismatch")
	}

	return &OwnerClaims{OwnerID: sub}, nil
}

// IssueOwnerToken creates a signed token for the owner. Used by the CLI
// login path and by tests.
func IssueOwnerToken(signKey []byte, ownerID string, expiry time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID,
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
	})
	return token.SignedString(signKey)
}

// GetOwnerClaims extracts owner claims from the request context.
func GetOwnerClaims(ctx context.Context) *OwnerClaims {
	claims, _ := ctx.Value(OwnerClaimsKey).(*OwnerClaims)
	return claims
}
