package app

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/policy"
	"github.com/jonboulle/clockwork"
)

type Config struct {
	DatabaseFile   string // Optional: path to SQLite database file, ":memory:" for a throwaway one (default: ./membership.db)
	PepperFile     string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	SigningKeyFile string // Optional: PKCS8 Ed25519 key for session tokens, created on first use. Empty means ephemeral
	Issuer         string // Optional: issuer claim for session tokens (default: membership)
	Audience       string // Optional: audience claim for session tokens (default: membership)

	PasswordMinLength  int           // Optional: minimum password length (default: 6)
	LockoutMaxAttempts int           // Optional: failed attempts before lockout (default: 5)
	LockoutDuration    time.Duration // Optional: lockout length (default: 5m)
	SessionTTL         time.Duration // Optional: session token lifetime (default: 12h)
	RequireUniqueEmail bool          // Optional: one account per e-mail address (default: false)
	SignInRate         float64       // Optional: password sign-ins per second, 0 disables pacing (default: 0)
	SignInBurst        int           // Optional: sign-in burst when pacing (default: 1)

	Env       string    // Environment (dev, staging, prod) (default: dev)
	LogLevel  string    // Log level (debug, info, warn, error) (default: info)
	LogFormat string    // Log format (json, text) (default: json)
	LogOutput io.Writer // Log destination, not read from the environment (default: stderr)

	// Clock drives lockout, tokens and session expiry. Not read from the
	// environment (default: real clock).
	Clock clockwork.Clock
}

func LoadConfig() Config {
	defaults := policy.DefaultOptions()

	return Config{
		DatabaseFile:   getEnvOrDefault("MEMBERSHIP_DATABASE_FILE", "membership.db"),
		PepperFile:     getEnvOrDefault("MEMBERSHIP_PEPPER_FILE", "pepper"),
		SigningKeyFile: os.Getenv("MEMBERSHIP_SIGNING_KEY_FILE"),
		Issuer:         getEnvOrDefault("MEMBERSHIP_ISSUER", defaults.Tokens.Issuer),
		Audience:       getEnvOrDefault("MEMBERSHIP_AUDIENCE", defaults.Tokens.Audience),

		PasswordMinLength:  getEnvIntOrDefault("MEMBERSHIP_PASSWORD_MIN_LENGTH", defaults.Password.RequiredLength),
		LockoutMaxAttempts: getEnvIntOrDefault("MEMBERSHIP_LOCKOUT_MAX_ATTEMPTS", defaults.Lockout.MaxFailedAccessAttempts),
		LockoutDuration:    getEnvDurationOrDefault("MEMBERSHIP_LOCKOUT_DURATION", defaults.Lockout.DefaultLockoutTimeSpan),
		SessionTTL:         getEnvDurationOrDefault("MEMBERSHIP_SESSION_TTL", defaults.Tokens.SessionTTL),
		RequireUniqueEmail: getEnvBoolOrDefault("MEMBERSHIP_REQUIRE_UNIQUE_EMAIL", defaults.User.RequireUniqueEmail),
		SignInRate:         getEnvFloatOrDefault("MEMBERSHIP_SIGNIN_RATE", defaults.SignIn.AttemptsPerSecond),
		SignInBurst:        getEnvIntOrDefault("MEMBERSHIP_SIGNIN_BURST", 1),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

// Options overlays the configured values on the library defaults.
func (c Config) Options() policy.Options {
	o := policy.DefaultOptions()
	o.Password.RequiredLength = c.PasswordMinLength
	o.Lockout.MaxFailedAccessAttempts = c.LockoutMaxAttempts
	o.Lockout.DefaultLockoutTimeSpan = c.LockoutDuration
	o.User.RequireUniqueEmail = c.RequireUniqueEmail
	o.Tokens.Issuer = c.Issuer
	o.Tokens.Audience = c.Audience
	o.Tokens.SessionTTL = c.SessionTTL
	o.SignIn.AttemptsPerSecond = c.SignInRate
	o.SignIn.Burst = c.SignInBurst
	return o
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
