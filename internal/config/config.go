// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"

	minProductionSecretLen = 32
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Auth      AuthConfig      `koanf:"auth"`
	Mail      MailConfig      `koanf:"mail"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are
	// believed. Empty means the socket peer is always the client.
	TrustedProxies  []string      `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
	KeyPrefix    string `koanf:"key_prefix"`
}

// JWTConfig holds the access token signing secret and the token lifetimes.
// RefreshTokenTTLDays bounds a refresh token's validity; inactive tokens are
// kept for RefreshTokenRetentionDays before pruning reclaims them.
type JWTConfig struct {
	Secret                    string        `koanf:"secret"`
	AccessTokenExpire         time.Duration `koanf:"access_token_expire"`
	RefreshTokenTTLDays       int           `koanf:"refresh_token_ttl_days"`
	RefreshTokenRetentionDays int           `koanf:"refresh_token_retention_days"`
}

func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(j.RefreshTokenTTLDays) * 24 * time.Hour
}

func (j JWTConfig) RefreshTokenRetention() time.Duration {
	return time.Duration(j.RefreshTokenRetentionDays) * 24 * time.Hour
}

type AuthConfig struct {
	TokenStore           string        `koanf:"token_store"`
	RequireVerifiedEmail bool          `koanf:"require_verified_email"`
	ResetTokenExpire     time.Duration `koanf:"reset_token_expire"`
}

type MailConfig struct {
	From    string `koanf:"from"`
	BaseURL string `koanf:"base_url"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence. Each call returns a fresh
// value; callers pass it to constructors explicitly.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "CMS Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,
		"redis.key_prefix":     "cms",

		"jwt.access_token_expire":          "15m",
		"jwt.refresh_token_ttl_days":       7,
		"jwt.refresh_token_retention_days": 2,

		"auth.token_store":            TokenStorePostgres,
		"auth.require_verified_email": false,
		"auth.reset_token_expire":     "24h",

		"mail.from":     "no-reply@localhost",
		"mail.base_url": "http://localhost:3000",

		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.auth_requests": 10,
		"rate_limit.auth_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "cms-backend",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                     "database.url",
	"DATABASE_AUTO_MIGRATE":            "database.auto_migrate",
	"REDIS_URL":                        "redis.url",
	"REDIS_KEY_PREFIX":                 "redis.key_prefix",
	"ENVIRONMENT":                      "app.environment",
	"HOST":                             "server.host",
	"PORT":                             "server.port",
	"LOG_LEVEL":                        "log.level",
	"LOG_FORMAT":                       "log.format",
	"JWT_SECRET":                       "jwt.secret",
	"JWT_ACCESS_TOKEN_EXPIRE":          "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_TTL_DAYS":       "jwt.refresh_token_ttl_days",
	"JWT_REFRESH_TOKEN_RETENTION_DAYS": "jwt.refresh_token_retention_days",
	"AUTH_TOKEN_STORE":                 "auth.token_store",
	"AUTH_REQUIRE_VERIFIED_EMAIL":      "auth.require_verified_email",
	"AUTH_RESET_TOKEN_EXPIRE":          "auth.reset_token_expire",
	"MAIL_FROM":                        "mail.from",
	"MAIL_BASE_URL":                    "mail.base_url",
	"RATE_LIMIT_REQUESTS":              "rate_limit.requests",
	"RATE_LIMIT_WINDOW":                "rate_limit.window",
	"RATE_LIMIT_BURST":                 "rate_limit.burst",
	"RATE_LIMIT_AUTH_REQUESTS":         "rate_limit.auth_requests",
	"RATE_LIMIT_AUTH_BURST":            "rate_limit.auth_burst",
	"OTEL_ENDPOINT":                    "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":      "otel.endpoint",
	"OTEL_SERVICE_NAME":                "otel.service_name",
	"OTEL_ENABLED":                     "otel.enabled",
	"OTEL_INSECURE":                    "otel.insecure",
	"OTEL_SAMPLE_RATE":                 "otel.sample_rate",
	"METRICS_ENABLED":                  "metrics.enabled",
	"METRICS_PATH":                     "metrics.path",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.IsProduction() && len(c.JWT.Secret) < minProductionSecretLen {
		return fmt.Errorf(
			"JWT_SECRET must be at least %d bytes in production",
			minProductionSecretLen,
		)
	}

	if c.JWT.AccessTokenExpire <= 0 {
		return fmt.Errorf("jwt.access_token_expire must be positive")
	}

	if c.JWT.RefreshTokenTTLDays <= 0 {
		return fmt.Errorf("jwt.refresh_token_ttl_days must be positive")
	}

	if c.JWT.RefreshTokenRetentionDays < 0 {
		return fmt.Errorf("jwt.refresh_token_retention_days must not be negative")
	}

	switch c.Auth.TokenStore {
	case TokenStorePostgres, TokenStoreRedis:
	default:
		return fmt.Errorf("unknown auth.token_store %q", c.Auth.TokenStore)
	}

	if c.Auth.ResetTokenExpire <= 0 {
		return fmt.Errorf("auth.reset_token_expire must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.IsProduction() {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
