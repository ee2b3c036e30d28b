package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	Env           string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	JWTAlgorithm       string

	RequestLimitPerMinute int
	RateLimitWindow       time.Duration
	StoreTimeout          time.Duration

	APIPrefix string
	AdminRole string
}

// Load reads .env when present and falls back to the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		ListenAddr:    getString("LISTEN_ADDR", ":8000"),
		Env:           getString("APP_ENV", "production"),
		DatabaseURL:   getString("DATABASE_URL", ""),
		RedisAddr:     getString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getString("REDIS_PASSWORD", ""),
		RedisDB:       intVar("REDIS_DB", 0),

		AccessTokenSecret:  getString("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getString("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     time.Duration(intVar("ACCESS_TOKEN_MINUTES_TTL", 60)) * time.Minute,
		RefreshTokenTTL:    time.Duration(intVar("REFRESH_TOKEN_DAYS_TTL", 10)) * 24 * time.Hour,
		JWTAlgorithm:       strings.ToUpper(getString("TOKEN_JWT_ALGORITHM", "HS256")),

		RequestLimitPerMinute: intVar("REQUEST_LIMIT_PER_MINUTE", 20),
		RateLimitWindow:       time.Duration(intVar("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		StoreTimeout:          time.Duration(intVar("STORE_TIMEOUT_SECONDS", 3)) * time.Second,

		APIPrefix: getString("API_PREFIX", "/auth/v1"),
		AdminRole: getString("ADMIN_ROLE", "admin"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case c.AccessTokenSecret == "" || c.RefreshTokenSecret == "":
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	case c.AccessTokenSecret == c.RefreshTokenSecret:
		return errors.New("access and refresh token secrets must differ")
	case c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0:
		return errors.New("token TTLs must be positive")
	case c.AccessTokenTTL >= c.RefreshTokenTTL:
		return errors.New("access token TTL must be shorter than refresh token TTL")
	case c.RequestLimitPerMinute <= 0 || c.RateLimitWindow <= 0:
		return errors.New("rate limit settings must be positive")
	case c.StoreTimeout <= 0:
		return errors.New("STORE_TIMEOUT_SECONDS must be positive")
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported TOKEN_JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

func getInt(key string, def int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %s", key, valueStr)
	}
	return value, nil
}
