// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/cms?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "8080")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenExpire)
	assert.Equal(t, 7, cfg.JWT.RefreshTokenTTLDays)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTokenTTL())
	assert.Equal(t, 48*time.Hour, cfg.JWT.RefreshTokenRetention())
	assert.Equal(t, TokenStorePostgres, cfg.Auth.TokenStore)
	assert.Equal(t, 24*time.Hour, cfg.Auth.ResetTokenExpire)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "cms", cfg.Redis.KeyPrefix)
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_REFRESH_TOKEN_TTL_DAYS", "14")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("jwt:\n  refresh_token_ttl_days: 3\nauth:\n  token_store: redis\n" +
		"server:\n  trusted_proxies:\n    - 10.0.0.0/8\n    - 192.0.2.1\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.JWT.RefreshTokenTTLDays)
	assert.Equal(t, TokenStoreRedis, cfg.Auth.TokenStore)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ShortSecretInProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestLoad_NonPositiveRefreshTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_REFRESH_TOKEN_TTL_DAYS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_token_ttl_days")
}

func TestLoad_UnknownTokenStore(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_TOKEN_STORE", "memcached")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached")
}
