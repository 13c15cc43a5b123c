// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	ProblemsDir string
	SessionTTL  time.Duration

	Completion CompletionConfig
	Sandbox    SandboxConfig
	RateLimit  RateLimitConfig
}

// CompletionConfig points at the remote chat-completion endpoint.
type CompletionConfig struct {
	BaseURL string
	APIKey  string
}

// SandboxConfig selects and configures the code-execution backend.
// Runner is "remote" (HTTP sandbox API) or "docker" (local containers).
type SandboxConfig struct {
	Runner  string
	BaseURL string
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// RateLimitConfig throttles assistant chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/codearena.db"),
		ProblemsDir: getEnv("PROBLEMS_DIR", ""),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		Completion: CompletionConfig{
			BaseURL: getEnv("COMPLETION_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:  getEnv("COMPLETION_API_KEY", ""),
		},
		Sandbox: SandboxConfig{
			Runner:  getEnv("SANDBOX_RUNNER", "remote"),
			BaseURL: getEnv("SANDBOX_BASE_URL", "https://judge0-ce.p.rapidapi.com"),
			APIKey:  getEnv("SANDBOX_API_KEY", ""),
			APIHost: getEnv("SANDBOX_API_HOST", "judge0-ce.p.rapidapi.com"),
			Timeout: getEnvDuration("SANDBOX_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Sandbox.Runner {
	case "remote", "docker":
	default:
		return fmt.Errorf("SANDBOX_RUNNER must be \"remote\" or \"docker\", got %q", c.Sandbox.Runner)
	}
	if c.Sandbox.Runner == "remote" && c.Sandbox.BaseURL == "" {
		return fmt.Errorf("SANDBOX_BASE_URL cannot be empty for the remote runner")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// AIEnabled returns true if the completion client is configured.
func (c *Config) AIEnabled() bool {
	return c.Completion.APIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
