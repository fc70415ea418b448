package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenStoreMemory   = "memory"
	TokenStoreRedis    = "redis"
	TokenStorePostgres = "postgres"

	minSessionSecretLen = 32
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	APIBaseURL  string
	APITimeout  time.Duration
	ProfilePath string

	Environment string
	LogFormat   string
	LogLevel    string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	TokenStore    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "3000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		APIBaseURL:              getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		APITimeout:              getDuration("API_TIMEOUT", 10*time.Second),
		ProfilePath:             getEnv("PROFILE_PATH", "/users/me"),
		Environment:             getEnv("ENVIRONMENT", "development"),
		LogFormat:               getEnv("LOG_FORMAT", "text"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		SessionSecret:           strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:              getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:            getBool("COOKIE_SECURE", false),
		TokenStore:              strings.ToLower(getEnv("TOKEN_STORE", TokenStoreMemory)),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:                 getInt("REDIS_DB", 0),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		CORSOrigins:             splitCSV(os.Getenv("CORS_ORIGINS")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		OTLPEndpoint:            strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTLPInsecure:            getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}

	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL")
	}

	if !strings.HasPrefix(c.ProfilePath, "/") {
		return fmt.Errorf("PROFILE_PATH must start with /")
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	switch c.TokenStore {
	case TokenStoreMemory:
	case TokenStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when TOKEN_STORE=redis")
		}
	case TokenStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when TOKEN_STORE=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be one of memory, redis, postgres")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
