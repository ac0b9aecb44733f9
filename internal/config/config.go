package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// Client settings
	APIBaseURL     string
	RequestTimeout time.Duration

	// Backend server settings
	APIAddr        string
	AllowedOrigins []string
	DevMode        bool
	LogLevel       string

	// LLM settings
	OpenRouterAPIKey string
	LLMBaseURL       string
	LLMModel         string

	// Redis settings
	RedisAddr      string
	AnswerCacheTTL time.Duration

	// Query tool settings
	QueryToolDriver string
	QueryToolDSN    string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

// Query tool drivers.
const (
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
)

func Load() *Config {
	return &Config{
		// Client
		APIBaseURL:     getEnv("BUDDY_API_URL", "http://localhost:8000"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),

		// Server
		APIAddr:        getEnv("API_ADDR", ":8000"),
		AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"*"}),
		DevMode:        getBoolEnv("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		// LLM
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:         getEnv("LLM_MODEL", "openai/gpt-4.1-mini"),

		// Redis
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		AnswerCacheTTL: getDurationEnv("ANSWER_CACHE_TTL", 10*time.Minute),

		// Query tool
		QueryToolDriver: getEnv("QUERY_TOOL_DRIVER", DriverPostgres),
		QueryToolDSN:    getEnv("QUERY_TOOL_DSN", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
	}
}

// Validate checks the settings every binary depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid BUDDY_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid BUDDY_API_URL %q: scheme must be http or https", c.APIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid BUDDY_API_URL %q: missing host", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.AnswerCacheTTL < 0 {
		return fmt.Errorf("ANSWER_CACHE_TTL must not be negative, got %s", c.AnswerCacheTTL)
	}
	switch c.QueryToolDriver {
	case DriverPostgres, DriverClickHouse:
	default:
		return fmt.Errorf("unsupported QUERY_TOOL_DRIVER %q", c.QueryToolDriver)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
