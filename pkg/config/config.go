// Package config loads storefront-api settings from the environment.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/Sternrassler/storefront-cache/pkg/docstore"
	"github.com/Sternrassler/storefront-cache/pkg/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Environment variable prefix shared by every setting.
const envPrefix = "STOREFRONT_"

// Cache backend kinds.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config holds every runtime setting of the storefront API.
type Config struct {
	Port           string
	RequestTimeout time.Duration

	LogLevel  logging.LogLevel
	LogPretty bool

	// CacheBackend is one of memory, redis or none.
	CacheBackend   string
	CacheNamespace string
	SessionTTL     time.Duration
	MaxEntryBytes  int
	Policies       cache.PolicyTable

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BackendURL     string
	UserAgent      string
	PageSize       int
	MaxConcurrency int

	// OAuth2 client credentials; all empty disables authentication.
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthScopes       []string

	// RateLimit gates document store requests on the reported quota.
	// The quota is shared through Redis when the cache backend is redis.
	RateLimit         bool
	RateLimitThrottle time.Duration

	NewArrivalsLimit int
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Port:              "8080",
		RequestTimeout:    30 * time.Second,
		LogLevel:          logging.LevelInfo,
		CacheBackend:      BackendMemory,
		CacheNamespace:    cache.DefaultNamespace,
		SessionTTL:        24 * time.Hour,
		MaxEntryBytes:     5 << 20,
		Policies:          cache.DefaultPolicyTable(),
		RedisAddr:         "localhost:6379",
		BackendURL:        "http://localhost:9000",
		UserAgent:         "storefront-api/0.1.0",
		PageSize:          100,
		MaxConcurrency:    4,
		RateLimit:         true,
		RateLimitThrottle: time.Second,
		NewArrivalsLimit:  8,
	}
}

// Load reads the configuration from STOREFRONT_* environment variables on top
// of Default and validates it.
func Load() (Config, error) {
	cfg := Default()
	var err error

	cfg.Port = getEnv("PORT", cfg.Port)
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = logging.LogLevel(strings.ToLower(getEnv("LOG_LEVEL", string(cfg.LogLevel))))
	if cfg.LogPretty, err = boolEnv("LOG_PRETTY", cfg.LogPretty); err != nil {
		return Config{}, err
	}

	cfg.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", cfg.CacheBackend))
	cfg.CacheNamespace = getEnv("CACHE_NAMESPACE", cfg.CacheNamespace)
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.MaxEntryBytes, err = intEnv("CACHE_MAX_ENTRY_BYTES", cfg.MaxEntryBytes); err != nil {
		return Config{}, err
	}
	if cfg.Policies.Short, err = durationEnv("TTL_SHORT", cfg.Policies.Short); err != nil {
		return Config{}, err
	}
	if cfg.Policies.Medium, err = durationEnv("TTL_MEDIUM", cfg.Policies.Medium); err != nil {
		return Config{}, err
	}
	if cfg.Policies.Long, err = durationEnv("TTL_LONG", cfg.Policies.Long); err != nil {
		return Config{}, err
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	if cfg.RedisDB, err = intEnv("REDIS_DB", cfg.RedisDB); err != nil {
		return Config{}, err
	}

	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	if cfg.PageSize, err = intEnv("PAGE_SIZE", cfg.PageSize); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrency, err = intEnv("MAX_CONCURRENCY", cfg.MaxConcurrency); err != nil {
		return Config{}, err
	}

	cfg.OAuthTokenURL = getEnv("OAUTH_TOKEN_URL", "")
	cfg.OAuthClientID = getEnv("OAUTH_CLIENT_ID", "")
	cfg.OAuthClientSecret = getEnv("OAUTH_CLIENT_SECRET", "")
	cfg.OAuthScopes = listEnv("OAUTH_SCOPES")

	if cfg.RateLimit, err = boolEnv("RATE_LIMIT", cfg.RateLimit); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitThrottle, err = durationEnv("RATE_LIMIT_THROTTLE", cfg.RateLimitThrottle); err != nil {
		return Config{}, err
	}

	if cfg.NewArrivalsLimit, err = intEnv("NEW_ARRIVALS_LIMIT", cfg.NewArrivalsLimit); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return &Error{Field: "Port", Message: fmt.Sprintf("must be a port number, got %q", c.Port)}
	}
	if c.RequestTimeout <= 0 {
		return &Error{Field: "RequestTimeout", Message: "must be greater than 0"}
	}

	if !c.LogLevel.Valid() {
		return &Error{Field: "LogLevel", Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}

	switch c.CacheBackend {
	case BackendMemory, BackendNone:
	case BackendRedis:
		if c.RedisAddr == "" {
			return &Error{Field: "RedisAddr", Message: "is required for the redis backend"}
		}
		if c.RedisDB < 0 {
			return &Error{Field: "RedisDB", Message: "must be non-negative"}
		}
	default:
		return &Error{Field: "CacheBackend", Message: fmt.Sprintf("must be memory, redis or none, got %q", c.CacheBackend)}
	}
	if c.CacheNamespace == "" {
		return &Error{Field: "CacheNamespace", Message: "cannot be empty"}
	}
	if c.SessionTTL < 0 {
		return &Error{Field: "SessionTTL", Message: "must be non-negative"}
	}
	if c.MaxEntryBytes < 0 {
		return &Error{Field: "MaxEntryBytes", Message: "must be non-negative"}
	}
	if err := c.Policies.Validate(); err != nil {
		return &Error{Field: "Policies", Message: err.Error()}
	}

	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: "BackendURL", Message: fmt.Sprintf("must be an absolute url, got %q", c.BackendURL)}
	}
	if c.UserAgent == "" {
		return &Error{Field: "UserAgent", Message: "cannot be empty"}
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return &Error{Field: "PageSize", Message: "must be between 1 and 1000"}
	}
	if c.MaxConcurrency < 1 {
		return &Error{Field: "MaxConcurrency", Message: "must be greater than 0"}
	}

	if c.OAuthClientID != "" || c.OAuthClientSecret != "" || c.OAuthTokenURL != "" {
		if c.OAuthClientID == "" || c.OAuthClientSecret == "" || c.OAuthTokenURL == "" {
			return &Error{Field: "OAuth", Message: "client id, client secret and token url must be set together"}
		}
	}

	if c.RateLimitThrottle < 0 {
		return &Error{Field: "RateLimitThrottle", Message: "must be non-negative"}
	}

	if c.NewArrivalsLimit < 1 {
		return &Error{Field: "NewArrivalsLimit", Message: "must be greater than 0"}
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// Memory returns the in-process backend configuration.
func (c Config) Memory() cache.MemoryConfig {
	return cache.MemoryConfig{
		SessionTTL:    c.SessionTTL,
		MaxEntryBytes: c.MaxEntryBytes,
	}
}

// OAuthEnabled reports whether backend requests are authenticated.
func (c Config) OAuthEnabled() bool {
	return c.OAuthClientID != ""
}

// TokenSource returns a client credentials token source, or nil when OAuth2
// is not configured.
func (c Config) TokenSource(ctx context.Context) oauth2.TokenSource {
	if !c.OAuthEnabled() {
		return nil
	}
	cc := clientcredentials.Config{
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		TokenURL:     c.OAuthTokenURL,
		Scopes:       c.OAuthScopes,
	}
	return cc.TokenSource(ctx)
}

// Docstore returns the document store client configuration.
func (c Config) Docstore(ctx context.Context) docstore.Config {
	cfg := docstore.DefaultConfig(c.BackendURL, c.UserAgent)
	cfg.Timeout = c.RequestTimeout
	cfg.PageSize = c.PageSize
	cfg.MaxConcurrency = c.MaxConcurrency
	cfg.TokenSource = c.TokenSource(ctx)
	return cfg
}

// Error reports an invalid or unparsable setting.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &Error{Field: envPrefix + key, Message: fmt.Sprintf("invalid integer %q", raw)}
	}
	return v, nil
}

func boolEnv(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &Error{Field: envPrefix + key, Message: fmt.Sprintf("invalid boolean %q", raw)}
	}
	return v, nil
}

// durationEnv accepts Go duration strings ("90s", "5m").
func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &Error{Field: envPrefix + key, Message: fmt.Sprintf("invalid duration %q", raw)}
	}
	return v, nil
}

func listEnv(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
