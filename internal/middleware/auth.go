package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/internal/httputil"
	"github.com/bealive/bealive-api/pkg/logger"
)

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// UserLookup fetches the user owning an access token from the identity
// provider.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// SupabaseVerifier verifies Supabase access tokens. With a JWT secret it
// checks HS256 signatures locally and only falls back to the auth API when
// local verification fails.
type SupabaseVerifier struct {
	secret []byte
	users  UserLookup
	log    *logger.Logger
}

// NewSupabaseVerifier builds a verifier. users may be nil when only local
// verification is available.
func NewSupabaseVerifier(jwtSecret string, users UserLookup, log *logger.Logger) *SupabaseVerifier {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &SupabaseVerifier{secret: secret, users: users, log: log}
}

// Verify returns the identity behind token.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, apperrors.Unauthorized("missing bearer token")
	}
	if len(v.secret) > 0 {
		id, err := v.verifyLocal(token)
		if err == nil {
			return id, nil
		}
		v.log.WithError(err).Debug("local token verification failed, asking identity provider")
	}
	if v.users == nil {
		return Identity{}, apperrors.Unavailable("identity provider is not configured")
	}

	user, err := v.users.GetUser(ctx, token)
	if err != nil {
		switch supabase.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Identity{}, apperrors.Unauthorized("invalid or expired token")
		default:
			return Identity{}, apperrors.BadGateway(err, "identity provider unavailable")
		}
	}
	if user == nil || user.ID == "" {
		return Identity{}, apperrors.Unauthorized("invalid or expired token")
	}
	return Identity{ID: user.ID, Email: user.Email, Phone: user.Phone, Role: user.Role}, nil
}

// supabaseAudience is the aud claim GoTrue puts on user access tokens.
const supabaseAudience = "authenticated"

func (v *SupabaseVerifier) verifyLocal(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(supabaseAudience),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("jwt invalid")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("jwt has no subject")
	}
	email, _ := claims["email"].(string)
	phone, _ := claims["phone"].(string)
	role, _ := claims["role"].(string)
	return Identity{ID: sub, Email: email, Phone: phone, Role: role}, nil
}

// Authenticate resolves an Authorization bearer token when one is present.
// Requests without the header pass through anonymously; RequireAuth guards
// the routes that need a caller.
func Authenticate(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				httputil.WriteError(w, apperrors.Unauthorized("invalid Authorization header format"))
				return
			}
			token := strings.TrimSpace(parts[1])

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.WithError(err).
					WithField("trace_id", TraceID(r.Context())).
					WithField("path", r.URL.Path).
					Warn("authentication failed")
				httputil.WriteError(w, err)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = storage.WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
