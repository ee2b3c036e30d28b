package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://service:pw@localhost:5432/auth?sslmode=disable")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, 60*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 20, cfg.RequestLimitPerMinute)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "/auth/v1", cfg.APIPrefix)
	assert.Equal(t, "admin", cfg.AdminRole)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_MINUTES_TTL", "15")
	t.Setenv("REQUEST_LIMIT_PER_MINUTE", "5")
	t.Setenv("TOKEN_JWT_ALGORITHM", "hs512")
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 5, cfg.RequestLimitPerMinute)
	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_InvalidInt(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_DB", "zero")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:           "postgres://x",
			AccessTokenSecret:     "a",
			RefreshTokenSecret:    "r",
			AccessTokenTTL:        time.Minute,
			RefreshTokenTTL:       time.Hour,
			JWTAlgorithm:          "HS256",
			RequestLimitPerMinute: 20,
			RateLimitWindow:       time.Minute,
			StoreTimeout:          time.Second,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database", func(c *Config) { c.DatabaseURL = "" }},
		{"missing secret", func(c *Config) { c.RefreshTokenSecret = "" }},
		{"shared secret", func(c *Config) { c.RefreshTokenSecret = c.AccessTokenSecret }},
		{"access outlives refresh", func(c *Config) { c.AccessTokenTTL = 2 * time.Hour }},
		{"zero limit", func(c *Config) { c.RequestLimitPerMinute = 0 }},
		{"zero timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"asymmetric algorithm", func(c *Config) { c.JWTAlgorithm = "RS256" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
