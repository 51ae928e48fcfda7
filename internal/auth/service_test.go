// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
)

func registerReq(email, password string) RegisterRequest {
	return RegisterRequest{
		Title:           "Ms",
		FirstName:       "Ann",
		LastName:        "Lee",
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		AcceptTerms:     true,
	}
}

func TestService_RegisterLoginRefreshScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Register(ctx, registerReq("Ann@Example.com", "password123"), "https://app.test"))

	mail := env.notifier.last()
	assert.Equal(t, "verify", mail.kind)
	assert.Equal(t, "ann@example.com", mail.to)
	require.NotEmpty(t, mail.token)

	resp, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "password123"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Account.ID)
	assert.Equal(t, "User", resp.Account.Role)
	assert.False(t, resp.Account.IsVerified)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.Equal(t, 900, resp.Tokens.ExpiresIn)

	claims, err := env.codec.Validate(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, &middleware.Claims{AccountID: 1, Role: "User"}, claims)

	original := resp.Tokens.RefreshToken
	env.clock.Advance(time.Minute)

	refreshed, err := env.svc.Refresh(ctx, original, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEqual(t, original, refreshed.Tokens.RefreshToken)

	stored, err := env.store.FindByToken(ctx, original)
	require.NoError(t, err)
	require.NotNil(t, stored.ReplacedBy)
	assert.Equal(t, refreshed.Tokens.RefreshToken, *stored.ReplacedBy)
	assert.Equal(t, "10.0.0.2", *stored.RevokedByIP)

	_, err = env.svc.Refresh(ctx, original, "10.0.0.2")
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = env.svc.Refresh(ctx, refreshed.Tokens.RefreshToken, "10.0.0.2")
	assert.NoError(t, err)
}

func TestService_LoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"unknown email", LoginRequest{Email: "nobody@example.com", Password: "password123"}},
		{"wrong password", LoginRequest{Email: "ann@example.com", Password: "wrong-password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Login(ctx, tt.req, "10.0.0.1")
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}

	_, err := env.svc.Login(ctx, LoginRequest{Email: " ANN@example.com ", Password: "password123"}, "10.0.0.1")
	assert.NoError(t, err)

	series, err := testutil.GatherAndCount(env.metrics.Registry(), "cms_auth_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestService_LoginRequiresVerifiedEmailWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RequireVerifiedEmail = true })
	ctx := context.Background()

	require.NoError(t, env.svc.Register(ctx, registerReq("ann@example.com", "password123"), ""))
	creds := LoginRequest{Email: "ann@example.com", Password: "password123"}

	_, err := env.svc.Login(ctx, creds, "10.0.0.1")
	assert.ErrorIs(t, err, ErrAuthentication)

	require.NoError(t, env.svc.VerifyEmail(ctx, env.notifier.last().token))
	assert.ErrorIs(t, env.svc.VerifyEmail(ctx, env.notifier.last().token), ErrInvalidVerificationToken)

	resp, err := env.svc.Login(ctx, creds, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, resp.Account.IsVerified)
}

func TestService_LoginRehashesLegacyHash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	id := env.accounts.add(AccountInfo{
		Email:        "old@example.com",
		PasswordHash: string(legacy),
		Role:         "User",
	})

	_, err = env.svc.Login(ctx, LoginRequest{Email: "old@example.com", Password: "password123"}, "10.0.0.1")
	require.NoError(t, err)

	rehashed := env.accounts.rehashed[id]
	require.NotEmpty(t, rehashed)
	assert.Contains(t, rehashed, "$argon2id$")
	assert.False(t, env.hasher.NeedsRehash(rehashed))
}

func TestService_RegisterDuplicateSendsNotice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	require.NoError(t, env.svc.Register(ctx, registerReq("ANN@example.com", "another-pass"), ""))

	mail := env.notifier.last()
	assert.Equal(t, "already_registered", mail.kind)
	assert.Equal(t, "ann@example.com", mail.to)
}

func TestService_RegisterHashesOnBothPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	require.NoError(t, env.svc.Register(ctx, registerReq("ann@example.com", "another-pass"), ""))
	assert.Equal(t, int32(1), env.counting.hashes.Load())

	require.NoError(t, env.svc.Register(ctx, registerReq("bob@example.com", "another-pass"), ""))
	assert.Equal(t, int32(2), env.counting.hashes.Load())
}

func TestService_RefreshRejectsInactiveTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")
	creds := LoginRequest{Email: "ann@example.com", Password: "password123"}

	t.Run("expired", func(t *testing.T) {
		resp, err := env.svc.Login(ctx, creds, "10.0.0.1")
		require.NoError(t, err)

		env.clock.Advance(7 * 24 * time.Hour)
		_, err = env.svc.Refresh(ctx, resp.Tokens.RefreshToken, "10.0.0.1")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("revoked", func(t *testing.T) {
		resp, err := env.svc.Login(ctx, creds, "10.0.0.1")
		require.NoError(t, err)

		require.NoError(t, env.svc.Revoke(ctx, resp.Tokens.RefreshToken, "10.0.0.1"))
		_, err = env.svc.Refresh(ctx, resp.Tokens.RefreshToken, "10.0.0.1")
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.ErrorIs(t, env.svc.Revoke(ctx, resp.Tokens.RefreshToken, "10.0.0.1"), ErrAuthentication)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := env.svc.Refresh(ctx, "does-not-exist", "10.0.0.1")
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("owner deleted", func(t *testing.T) {
		id := env.seedAccount(t, "bob@example.com", "password123", "User")
		resp, err := env.svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "password123"}, "10.0.0.1")
		require.NoError(t, err)

		env.accounts.softDelete(id)
		_, err = env.svc.Refresh(ctx, resp.Tokens.RefreshToken, "10.0.0.1")
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestService_ConcurrentRefreshSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	resp, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "password123"}, "10.0.0.1")
	require.NoError(t, err)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		failures int
	)

	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			out, err := env.svc.Refresh(ctx, resp.Tokens.RefreshToken, "10.0.0.1")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrAuthentication)
				failures++
				return
			}
			winners = append(winners, out.Tokens.RefreshToken)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, failures)

	lineage, err := env.store.ListForAccount(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, winners[0], *lineage[0].ReplacedBy)
	assert.Equal(t, winners[0], lineage[1].Token)
}

func TestService_RevokeAs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	annID := env.seedAccount(t, "ann@example.com", "password123", "User")
	bobID := env.seedAccount(t, "bob@example.com", "password123", "User")
	adminID := env.seedAccount(t, "root@example.com", "password123", "Admin")

	login := func(email string) string {
		resp, err := env.svc.Login(ctx, LoginRequest{Email: email, Password: "password123"}, "10.0.0.1")
		require.NoError(t, err)
		return resp.Tokens.RefreshToken
	}

	annToken := login("ann@example.com")
	bob := &middleware.Claims{AccountID: bobID, Role: "User"}
	ann := &middleware.Claims{AccountID: annID, Role: "user"}
	admin := &middleware.Claims{AccountID: adminID, Role: "admin"}

	assert.ErrorIs(t, env.svc.RevokeAs(ctx, bob, annToken, "10.0.0.5"), core.ErrForbidden)
	assert.ErrorIs(t, env.svc.RevokeAs(ctx, nil, annToken, "10.0.0.5"), ErrAuthentication)
	require.NoError(t, env.svc.RevokeAs(ctx, ann, annToken, "10.0.0.5"))

	annToken = login("ann@example.com")
	require.NoError(t, env.svc.RevokeAs(ctx, admin, annToken, "10.0.0.6"))

	stored, err := env.store.FindByToken(ctx, annToken)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.6", *stored.RevokedByIP)
	assert.Nil(t, stored.ReplacedBy)
}

func TestService_ListRefreshTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	annID := env.seedAccount(t, "ann@example.com", "password123", "User")
	bobID := env.seedAccount(t, "bob@example.com", "password123", "User")

	resp, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "password123"}, "10.0.0.1")
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, resp.Tokens.RefreshToken, "10.0.0.1")
	require.NoError(t, err)

	tokens, err := env.svc.ListRefreshTokens(ctx, &middleware.Claims{AccountID: annID, Role: "User"}, annID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.False(t, tokens[0].IsActive)
	assert.True(t, tokens[1].IsActive)

	_, err = env.svc.ListRefreshTokens(ctx, &middleware.Claims{AccountID: bobID, Role: "User"}, annID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	tokens, err = env.svc.ListRefreshTokens(ctx, &middleware.Claims{AccountID: 99, Role: "Admin"}, annID)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestService_PruneOnLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.seedAccount(t, "ann@example.com", "password123", "User")
	creds := LoginRequest{Email: "ann@example.com", Password: "password123"}

	first, err := env.svc.Login(ctx, creds, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, env.svc.Revoke(ctx, first.Tokens.RefreshToken, "10.0.0.1"))

	env.clock.Advance(3 * 24 * time.Hour)
	_, err = env.svc.Login(ctx, creds, "10.0.0.1")
	require.NoError(t, err)

	lineage, err := env.store.ListForAccount(ctx, id)
	require.NoError(t, err)
	require.Len(t, lineage, 1)
	assert.NotEqual(t, first.Tokens.RefreshToken, lineage[0].Token)
}

func TestService_PasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	require.NoError(t, env.svc.ForgotPassword(ctx, "nobody@example.com", ""))
	assert.Empty(t, env.notifier.sent)

	require.NoError(t, env.svc.ForgotPassword(ctx, "Ann@example.com", ""))
	mail := env.notifier.last()
	require.Equal(t, "reset", mail.kind)

	require.NoError(t, env.svc.ValidateResetToken(ctx, mail.token))
	assert.ErrorIs(t, env.svc.ValidateResetToken(ctx, "bogus"), ErrInvalidResetToken)

	reset := ResetPasswordRequest{Token: mail.token, Password: "brand-new-pass", ConfirmPassword: "brand-new-pass"}
	require.NoError(t, env.svc.ResetPassword(ctx, reset))
	assert.ErrorIs(t, env.svc.ResetPassword(ctx, reset), ErrInvalidResetToken)

	_, err := env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "password123"}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrAuthentication)
	_, err = env.svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "brand-new-pass"}, "10.0.0.1")
	assert.NoError(t, err)
}

func TestService_ResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "ann@example.com", "password123", "User")

	require.NoError(t, env.svc.ForgotPassword(ctx, "ann@example.com", ""))
	token := env.notifier.last().token

	env.clock.Advance(24 * time.Hour)
	assert.ErrorIs(t, env.svc.ValidateResetToken(ctx, token), ErrInvalidResetToken)
	assert.ErrorIs(t, env.svc.ResetPassword(ctx, ResetPasswordRequest{
		Token:           token,
		Password:        "brand-new-pass",
		ConfirmPassword: "brand-new-pass",
	}), ErrInvalidResetToken)
}
