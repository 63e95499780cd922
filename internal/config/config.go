package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the agent
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogConsole     bool
	Environment    string

	// Portal backend
	APIURL      string
	WSURL       string // Optional explicit WebSocket base, derived from APIURL when empty
	HTTPTimeout time.Duration

	// Session
	Token      string
	TenantSlug string

	// Notification socket
	WSAllowedHosts       []string
	DesktopNotifications string // granted, denied or default

	// Vetting
	UnknownStatusPolicy string // fail_open or fail_closed

	RedisURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                 getEnv("PORT", "8090"),
		AllowedOrigins:       parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogConsole:           getBoolEnv("LOG_CONSOLE", false),
		Environment:          getEnv("ENVIRONMENT", "production"),
		APIURL:               strings.TrimRight(getEnv("API_URL", "http://localhost:8000/api/v1"), "/"),
		WSURL:                strings.TrimRight(getEnv("WS_URL", ""), "/"),
		HTTPTimeout:          timeout,
		Token:                getEnv("PORTAL_TOKEN", ""),
		TenantSlug:           getEnv("TENANT_SLUG", ""),
		WSAllowedHosts:       parseList(getEnv("WS_ALLOWED_HOSTS", "")),
		DesktopNotifications: strings.ToLower(getEnv("DESKTOP_NOTIFICATIONS", "default")),
		UnknownStatusPolicy:  strings.ToLower(getEnv("VETTING_UNKNOWN_STATUS_POLICY", "fail_open")),
		RedisURL:             getEnv("REDIS_URL", ""),
	}, nil
}

// Validate reports every missing or malformed setting at once
func (c *Config) Validate() error {
	var problems []string

	if c.APIURL == "" {
		problems = append(problems, "API_URL is required")
	}
	if c.Token == "" {
		problems = append(problems, "PORTAL_TOKEN is required")
	}
	if c.TenantSlug == "" {
		problems = append(problems, "TENANT_SLUG is required")
	}
	switch c.DesktopNotifications {
	case "granted", "denied", "default":
	default:
		problems = append(problems, "DESKTOP_NOTIFICATIONS must be granted, denied or default")
	}
	switch c.UnknownStatusPolicy {
	case "fail_open", "fail_closed":
	default:
		problems = append(problems, "VETTING_UNKNOWN_STATUS_POLICY must be fail_open or fail_closed")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction returns true when running a production build
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production") || strings.EqualFold(c.Environment, "prod")
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseList parses a comma-separated list into a slice
func parseList(values string) []string {
	if values == "" {
		return []string{}
	}

	parts := strings.Split(values, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
