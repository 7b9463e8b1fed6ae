// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/middleware"
)

// Token signs an HS256 access token for subject, shaped like the tokens the
// identity provider issues.
func Token(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": "authenticated",
		"aud":  "authenticated",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NewUserID returns a random user id.
func NewUserID() string {
	return uuid.NewString()
}

// StaticVerifier resolves bearer tokens from a fixed token -> user id map.
type StaticVerifier map[string]string

// Verify implements middleware.Verifier.
func (v StaticVerifier) Verify(_ context.Context, token string) (middleware.Identity, error) {
	id, ok := v[token]
	if !ok {
		return middleware.Identity{}, apperrors.Unauthorized("invalid or expired token")
	}
	return middleware.Identity{ID: id}, nil
}
