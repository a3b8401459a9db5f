package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
)

// Session store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	APIURL         string        // Backend base URL, e.g. https://host/api/auth (default: http://localhost:8080)
	Role           string        // Audience tag sent with every request (default: administrator)
	SessionStore   string        // Session store backend (sqlite, memory) (default: sqlite)
	DatabaseFile   string        // Optional: path to SQLite database file (default: ./console.db)
	MasterKeyPath  string        // Optional: key file sealing tokens at rest, created when missing
	MetricsFile    string        // Optional: write flow metrics in text format after each command
	HTTPTimeout    time.Duration // Per-request timeout (default: 10s)
	LogoutTimeout  time.Duration // Bound on the server side logout call (default: 5s)
	ResendCooldown time.Duration // Minimum gap between passcode resends (default: 0, disabled)
	Env            string        // Environment (dev, staging, prod) (default: dev)
	LogLevel       string        // Log level (debug, info, warn, error) (default: info)
	LogFormat      string        // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		APIURL:         getEnvOrDefault("CONSOLE_API_URL", "http://localhost:8080"),
		Role:           getEnvOrDefault("CONSOLE_ROLE", string(consoleauth.RoleAdministrator)),
		SessionStore:   strings.ToLower(getEnvOrDefault("CONSOLE_SESSION_STORE", StoreSQLite)),
		DatabaseFile:   getEnvOrDefault("CONSOLE_DATABASE_FILE", "console.db"),
		MasterKeyPath:  os.Getenv("CONSOLE_MASTER_KEY_PATH"),
		MetricsFile:    os.Getenv("CONSOLE_METRICS_FILE"),
		HTTPTimeout:    getEnvDurationOrDefault("CONSOLE_HTTP_TIMEOUT", consoleauth.DefaultTimeout),
		LogoutTimeout:  getEnvDurationOrDefault("CONSOLE_LOGOUT_TIMEOUT", 5*time.Second),
		ResendCooldown: getEnvDurationOrDefault("CONSOLE_RESEND_COOLDOWN", 0),
		Env:            getEnvOrDefault("ENV", "dev"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// Validate rejects settings the console cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("CONSOLE_API_URL must not be empty")
	}
	if _, err := consoleauth.ParseRole(c.Role); err != nil {
		return fmt.Errorf("invalid CONSOLE_ROLE: %w", err)
	}
	switch c.SessionStore {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("invalid CONSOLE_SESSION_STORE %q (want %s or %s)", c.SessionStore, StoreSQLite, StoreMemory)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("CONSOLE_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "10s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
