// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cms-backend/internal/role"
)

type fakeVerifier struct {
	tokens map[string]*Claims
}

func (f fakeVerifier) Validate(_ context.Context, token string) (*Claims, error) {
	if c, ok := f.tokens[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

var verifier = fakeVerifier{tokens: map[string]*Claims{
	"user-token":  {AccountID: 7, Role: "User"},
	"admin-token": {AccountID: 1, Role: "admin"},
}}

func captureClaims(dst **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dst = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   *Claims
	}{
		{name: "no header", header: "", want: nil},
		{name: "invalid token", header: "Bearer garbage", want: nil},
		{name: "wrong scheme", header: "Basic user-token", want: nil},
		{name: "valid token", header: "Bearer user-token", want: &Claims{AccountID: 7, Role: "User"}},
		{name: "lowercase scheme", header: "bearer admin-token", want: &Claims{AccountID: 1, Role: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got *Claims
			h := Identify(verifier)(captureClaims(&got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims *Claims
		roles  []role.Role
		want   int
	}{
		{name: "no identity", claims: nil, roles: nil, want: http.StatusUnauthorized},
		{name: "no identity with roles", claims: nil, roles: []role.Role{role.Admin}, want: http.StatusUnauthorized},
		{name: "any identity", claims: &Claims{AccountID: 3, Role: "User"}, roles: nil, want: http.StatusOK},
		{name: "role not allowed", claims: &Claims{AccountID: 3, Role: "User"}, roles: []role.Role{role.Admin}, want: http.StatusUnauthorized},
		{name: "role case insensitive", claims: &Claims{AccountID: 1, Role: "ADMIN"}, roles: []role.Role{role.Admin}, want: http.StatusOK},
		{name: "one of many", claims: &Claims{AccountID: 3, Role: "user"}, roles: []role.Role{role.Admin, role.User}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := RequireRole(tt.roles...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIdentifyThenRequireAdmin(t *testing.T) {
	t.Parallel()

	h := Identify(verifier)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, IsAdmin(r.Context()))
		assert.Equal(t, int64(1), GetAccountID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}
