// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/role"
)

const ClaimsKey contextKey = "identity_claims"

// Claims is the identity carried by a valid access token.
type Claims struct {
	AccountID int64
	Role      string
}

func (c *Claims) HasRole(r role.Role) bool {
	return c != nil && role.Role(c.Role).Equal(r)
}

type TokenVerifier interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// Identify attaches the bearer token's claims to the request context when
// the token verifies. Missing or invalid tokens never fail the request;
// authorization is left to RequireRole.
func Identify(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Validate(r.Context(), token)
			if err != nil {
				slog.DebugContext(r.Context(), "access token rejected",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole rejects requests without an identity, and requests whose role
// is outside a non-empty allow-list. Both cases answer 401.
func RequireRole(roles ...role.Role) func(http.Handler) http.Handler {
	allowed := role.NewSet(roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())

			if claims == nil {
				core.JSONError(w, core.UnauthorizedError("Unauthorized"))
				return
			}

			if !allowed.Empty() && !allowed.Contains(role.Role(claims.Role)) {
				core.JSONError(w, core.UnauthorizedError("Unauthorized"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return RequireRole()(next)
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(role.Admin)(next)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

func GetClaims(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

func GetAccountID(ctx context.Context) int64 {
	if claims := GetClaims(ctx); claims != nil {
		return claims.AccountID
	}
	return 0
}

func IsAdmin(ctx context.Context) bool {
	return GetClaims(ctx).HasRole(role.Admin)
}
