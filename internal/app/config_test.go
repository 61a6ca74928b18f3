package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "membership.db", cfg.DatabaseFile)
	require.Equal(t, "pepper", cfg.PepperFile)
	require.Empty(t, cfg.SigningKeyFile)
	require.Equal(t, "membership", cfg.Issuer)
	require.Equal(t, 6, cfg.PasswordMinLength)
	require.Equal(t, 5, cfg.LockoutMaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.LockoutDuration)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.False(t, cfg.RequireUniqueEmail)
	require.NoError(t, cfg.Options().Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MEMBERSHIP_DATABASE_FILE", "/var/lib/membership/id.db")
	t.Setenv("MEMBERSHIP_PASSWORD_MIN_LENGTH", "12")
	t.Setenv("MEMBERSHIP_LOCKOUT_MAX_ATTEMPTS", "3")
	t.Setenv("MEMBERSHIP_LOCKOUT_DURATION", "15")
	t.Setenv("MEMBERSHIP_SESSION_TTL", "1h")
	t.Setenv("MEMBERSHIP_REQUIRE_UNIQUE_EMAIL", "true")
	t.Setenv("MEMBERSHIP_SIGNIN_RATE", "2.5")
	t.Setenv("MEMBERSHIP_SIGNIN_BURST", "4")

	cfg := LoadConfig()
	require.Equal(t, "/var/lib/membership/id.db", cfg.DatabaseFile)

	opts := cfg.Options()
	require.Equal(t, 12, opts.Password.RequiredLength)
	require.Equal(t, 3, opts.Lockout.MaxFailedAccessAttempts)
	require.Equal(t, 15*time.Minute, opts.Lockout.DefaultLockoutTimeSpan)
	require.Equal(t, time.Hour, opts.Tokens.SessionTTL)
	require.True(t, opts.User.RequireUniqueEmail)
	require.InDelta(t, 2.5, opts.SignIn.AttemptsPerSecond, 0.0001)
	require.Equal(t, 4, opts.SignIn.Burst)
	require.NotNil(t, opts.SignIn.Limiter())
}

func TestGetEnvHelpersFallBack(t *testing.T) {
	t.Setenv("MEMBERSHIP_TEST_INT", "nope")
	t.Setenv("MEMBERSHIP_TEST_BOOL", "maybe")
	t.Setenv("MEMBERSHIP_TEST_DURATION", "soon")

	require.Equal(t, 7, getEnvIntOrDefault("MEMBERSHIP_TEST_INT", 7))
	require.True(t, getEnvBoolOrDefault("MEMBERSHIP_TEST_BOOL", true))
	require.Equal(t, time.Second, getEnvDurationOrDefault("MEMBERSHIP_TEST_DURATION", time.Second))
	require.InDelta(t, 1.5, getEnvFloatOrDefault("MEMBERSHIP_TEST_MISSING", 1.5), 0.0001)
}
