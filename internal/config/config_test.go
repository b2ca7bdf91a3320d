package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-at-least-16-chars")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)

	assert.Equal(t, 30, cfg.Guard.MaxFailedPerIP)
	assert.Equal(t, 1*time.Hour, cfg.Guard.IPWindow)
	assert.Equal(t, 24*time.Hour, cfg.Guard.BlockDuration)
	assert.Equal(t, 5, cfg.Guard.MaxFailedPerAccount)
	assert.Equal(t, 15*time.Minute, cfg.Guard.LockoutDuration)

	assert.False(t, cfg.Alert.Enabled)
}

func TestLoad_GuardOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_MAX_FAILED_PER_IP", "10")
	t.Setenv("GUARD_IP_WINDOW", "30m")
	t.Setenv("GUARD_BLOCK_DURATION", "48h")
	t.Setenv("GUARD_MAX_FAILED_PER_ACCOUNT", "3")
	t.Setenv("GUARD_LOCKOUT_DURATION", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Guard.MaxFailedPerIP)
	assert.Equal(t, 30*time.Minute, cfg.Guard.IPWindow)
	assert.Equal(t, 48*time.Hour, cfg.Guard.BlockDuration)
	assert.Equal(t, 3, cfg.Guard.MaxFailedPerAccount)
	assert.Equal(t, 5*time.Minute, cfg.Guard.LockoutDuration)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-at-least-16-chars")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsDisabledGuard(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_MAX_FAILED_PER_IP", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsRetentionShorterThanWindow(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_IP_WINDOW", "2h")
	t.Setenv("GUARD_LEDGER_RETENTION", "1h")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AlertRequiresAddresses(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALERT_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ALERT_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("ALERT_SECURITY_ADDRESS", "security@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Alert.Enabled)
}

func TestValidateJWTSecret(t *testing.T) {
	assert.Error(t, validateJWTSecret("short", "development"))
	assert.Error(t, validateJWTSecret("this-is-20-chars-long", "production"))
	assert.NoError(t, validateJWTSecret("this-is-20-chars-long", "development"))
	assert.NoError(t, validateJWTSecret("a-production-grade-secret-of-32-plus-chars", "production"))
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "pw", Name: "gatekeeper", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=gatekeeper sslmode=disable",
		db.DSN())
}
