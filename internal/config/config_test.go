package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "*", cfg.CORSOrigins)
	assert.Equal(t, DefaultDriver, cfg.DBDriver)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, "Asia/Bangkok", cfg.Location.String())
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.False(t, cfg.SecureCookies)
	assert.False(t, cfg.AdminConfigured())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSize)
}

func TestFromEnvGeneratesSessionSecret(t *testing.T) {
	first, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	second, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Len(t, first.SessionSecret, 64)
	assert.NotEqual(t, first.SessionSecret, second.SessionSecret)
	assert.NotEqual(t, "readiness-dev-session-secret", first.SessionSecret)

	cfg, err := FromEnv(envOf(map[string]string{"SESSION_SECRET": "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionSecret)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":            "9000",
		"DATABASE_DRIVER": "sqlite3",
		"DATABASE_URL":    "file:readiness.db",
		"ADMIN_USERNAME":  "admin",
		"ADMIN_PASSWORD":  "secret",
		"SESSION_TTL":     "2h",
		"SECURE_COOKIES":  "true",
		"TIME_ZONE":       "UTC",
		"LOG_LEVEL":       "DEBUG",
		"LOG_MAX_AGE":     "7",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.True(t, cfg.AdminConfigured())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Log.MaxAge)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	bad := []map[string]string{
		{"SESSION_TTL": "soon"},
		{"SESSION_TTL": "-1h"},
		{"SECURE_COOKIES": "maybe"},
		{"TIME_ZONE": "Mars/Olympus"},
		{"LOG_MAX_SIZE": "big"},
	}
	for _, env := range bad {
		_, err := FromEnv(envOf(env))
		assert.Error(t, err, env)
	}
}
