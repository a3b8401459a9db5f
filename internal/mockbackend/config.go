package mockbackend

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/regconsole/pkg/consoleauth"
)

// ServerConfig is the environment of the cmd/authmock binary.
type ServerConfig struct {
	Port                 int           // HTTP server port (default: 8080)
	Prefix               string        // Path prefix of the auth endpoints (default: none)
	Issuer               string        // Access token issuer (default: regconsole-authmock)
	SigningSecret        string        // HS256 secret, at least 32 bytes (default: random per start)
	Pepper               string        // Optional: password hashing pepper
	Accounts             []NewAccount  // Seed accounts, "user:password:role[:locked]" comma separated
	ChallengeTTL         time.Duration // Passcode lifetime (default: 5m)
	MaxAttempts          int           // Wrong passcodes before a challenge is destroyed (default: 5)
	MaxResends           int           // Resends per login (default: 5)
	HousekeepingInterval time.Duration // Expired challenge sweep (default: 1m)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
}

// LoadServerConfig reads AUTHMOCK_* variables.
func LoadServerConfig() (ServerConfig, error) {
	accounts, err := ParseAccounts(os.Getenv("AUTHMOCK_ACCOUNTS"))
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid AUTHMOCK_ACCOUNTS: %w", err)
	}

	return ServerConfig{
		Port:                 getEnvIntOrDefault("AUTHMOCK_PORT", 8080),
		Prefix:               os.Getenv("AUTHMOCK_PREFIX"),
		Issuer:               getEnvOrDefault("AUTHMOCK_ISSUER", "regconsole-authmock"),
		SigningSecret:        os.Getenv("AUTHMOCK_SIGNING_SECRET"),
		Pepper:               os.Getenv("AUTHMOCK_PEPPER"),
		Accounts:             accounts,
		ChallengeTTL:         getEnvDurationOrDefault("AUTHMOCK_CHALLENGE_TTL", DefaultChallengeTTL),
		MaxAttempts:          getEnvIntOrDefault("AUTHMOCK_MAX_ATTEMPTS", DefaultMaxAttempts),
		MaxResends:           getEnvIntOrDefault("AUTHMOCK_MAX_RESENDS", DefaultMaxResends),
		HousekeepingInterval: getEnvDurationOrDefault("AUTHMOCK_HOUSEKEEPING_INTERVAL", time.Minute),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
	}, nil
}

// ParseAccounts parses "alice:secret:administrator,bob:pw:registration_officer:locked".
// Empty input yields no accounts.
func ParseAccounts(s string) ([]NewAccount, error) {
	var accounts []NewAccount

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("account %q: want user:password:role[:locked]", entry)
		}

		role, err := consoleauth.ParseRole(parts[2])
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", parts[0], err)
		}

		acct := NewAccount{Username: parts[0], Password: parts[1], Role: role}
		if len(parts) == 4 {
			if parts[3] != "locked" {
				return nil, fmt.Errorf("account %q: unknown flag %q", parts[0], parts[3])
			}
			acct.Locked = true
		}
		accounts = append(accounts, acct)
	}

	return accounts, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
