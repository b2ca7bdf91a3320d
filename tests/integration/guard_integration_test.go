package integration

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/analyticshub/gatekeeper/internal/config"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/analyticshub/gatekeeper/internal/services"
	pkglogger "github.com/analyticshub/gatekeeper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		slog.Error("failed to set up test database", slog.Any("error", err))
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

// integrationGuardConfig uses tight thresholds so tests stay fast.
func integrationGuardConfig() config.GuardConfig {
	return config.GuardConfig{
		MaxFailedPerIP:      5,
		IPWindow:            1 * time.Hour,
		BlockDuration:       24 * time.Hour,
		MaxFailedPerAccount: 3,
		LockoutDuration:     15 * time.Minute,
		LedgerRetention:     30 * 24 * time.Hour,
		CleanupInterval:     1 * time.Hour,
	}
}

func newIntegrationGuard(t *testing.T) *services.GuardService {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userRepo, ledgerRepo, blacklistRepo := InitializeRepositories(testDB.DB)

	return services.NewGuardService(
		ledgerRepo,
		blacklistRepo,
		userRepo,
		nil,
		integrationGuardConfig(),
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func guardInput(email, password, ip string) services.LoginInput {
	return services.LoginInput{
		Email:     email,
		Password:  password,
		IPAddress: ip,
		UserAgent: "integration-test",
	}
}

func TestGuardIntegration_SuccessfulLogin(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	user, err := SeedUser(ctx, testDB.DB, "jane@example.com", "correct-password-1")
	require.NoError(t, err)

	decision, err := guard.Authenticate(ctx, guardInput("jane@example.com", "correct-password-1", "203.0.113.7"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Speculative failed row plus the success row.
	var total, failed int
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE success = false) FROM login_attempts`).Scan(&total, &failed))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)

	userRepo, _, _ := InitializeRepositories(testDB.DB)
	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LastLoginAt)
	require.NotNil(t, stored.LastLoginIP)
	assert.Equal(t, "203.0.113.7", *stored.LastLoginIP)
}

func TestGuardIntegration_IPAutoBlacklist(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	// Four failures already in the window; the fifth trips the threshold.
	require.NoError(t, SeedFailedAttempts(ctx, testDB.DB, "203.0.113.7", "nobody@example.com", 4))

	decision, err := guard.Authenticate(ctx, guardInput("nobody@example.com", "wrong", "203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, models.DenyInvalidCredentials, decision.Reason)

	_, _, blacklistRepo := InitializeRepositories(testDB.DB)
	entry, err := blacklistRepo.GetActiveEntry(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, models.BlockedBySystem, entry.BlockedBy)
	assert.Equal(t, 5, entry.AttemptCount)
	require.NotNil(t, entry.ExpiresAt)

	// Subsequent attempts are rejected before credentials and leave no row.
	var before int
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts`).Scan(&before))

	decision, err = guard.Authenticate(ctx, guardInput("nobody@example.com", "wrong", "203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, models.DenyIPBlocked, decision.Reason)

	var after int
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts`).Scan(&after))
	assert.Equal(t, before, after)
}

func TestGuardIntegration_UnderThresholdDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	require.NoError(t, SeedFailedAttempts(ctx, testDB.DB, "203.0.113.7", "nobody@example.com", 3))

	decision, err := guard.Authenticate(ctx, guardInput("nobody@example.com", "wrong", "203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, models.DenyInvalidCredentials, decision.Reason)

	_, _, blacklistRepo := InitializeRepositories(testDB.DB)
	_, err = blacklistRepo.GetActiveEntry(ctx, "203.0.113.7")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGuardIntegration_AccountLockout(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	user, err := SeedUser(ctx, testDB.DB, "jane@example.com", "correct-password-1")
	require.NoError(t, err)

	// Spread attempts across IPs so the account lockout triggers before the
	// IP blacklist does.
	ips := []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"}
	for _, ip := range ips {
		decision, err := guard.Authenticate(ctx, guardInput("jane@example.com", "wrong", ip))
		require.NoError(t, err)
		assert.Equal(t, models.DenyInvalidCredentials, decision.Reason)
	}

	userRepo, _, _ := InitializeRepositories(testDB.DB)
	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.IsLocked(time.Now()))

	// Correct password while locked is still denied, without a counter reset.
	decision, err := guard.Authenticate(ctx, guardInput("jane@example.com", "correct-password-1", "198.51.100.4"))
	require.NoError(t, err)
	assert.Equal(t, models.DenyAccountLocked, decision.Reason)

	stored, err = userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FailedLoginAttempts)
}

func TestGuardIntegration_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	user, err := SeedUser(ctx, testDB.DB, "jane@example.com", "correct-password-1")
	require.NoError(t, err)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		_, err := guard.Authenticate(ctx, guardInput("jane@example.com", "wrong", ip))
		require.NoError(t, err)
	}

	decision, err := guard.Authenticate(ctx, guardInput("jane@example.com", "correct-password-1", "198.51.100.3"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	userRepo, _, _ := InitializeRepositories(testDB.DB)
	stored, err := userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestGuardIntegration_AmnestyDeactivatesExpiredBlock(t *testing.T) {
	ctx := context.Background()
	guard := newIntegrationGuard(t)

	_, err := SeedUser(ctx, testDB.DB, "jane@example.com", "correct-password-1")
	require.NoError(t, err)

	// An already-expired entry no longer blocks logins but is still active in
	// the table until amnesty or cleanup flips it.
	_, _, blacklistRepo := InitializeRepositories(testDB.DB)
	require.NoError(t, blacklistRepo.Block(ctx, &models.BlacklistEntry{
		IPAddress: "203.0.113.7",
		Reason:    "exceeded maximum login attempts",
		BlockedBy: models.BlockedBySystem,
	}, time.Nanosecond))

	decision, err := guard.Authenticate(ctx, guardInput("jane@example.com", "correct-password-1", "203.0.113.7"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	var status string
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT status FROM blacklisted_ips WHERE ip_address = $1`, "203.0.113.7").Scan(&status))
	assert.Equal(t, models.BlacklistStatusInactive, status)
}

func TestGuardIntegration_ManualBlockConflictsWhenActive(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	_, _, blacklistRepo := InitializeRepositories(testDB.DB)

	first := &models.BlacklistEntry{
		IPAddress: "198.51.100.23",
		Reason:    "credential stuffing",
		BlockedBy: "admin_1",
	}
	require.NoError(t, blacklistRepo.BlockIfAbsent(ctx, first, 48*time.Hour))

	// A second manual block for the same IP conflicts while the first is
	// still active.
	err := blacklistRepo.BlockIfAbsent(ctx, &models.BlacklistEntry{
		IPAddress: "198.51.100.23",
		Reason:    "duplicate",
		BlockedBy: "admin_2",
	}, 0)
	assert.ErrorIs(t, err, models.ErrConflict)

	var count int
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM blacklisted_ips WHERE ip_address = $1`, "198.51.100.23").Scan(&count))
	assert.Equal(t, 1, count)

	// Once unblocked, the IP can be blocked again.
	flipped, err := blacklistRepo.Unblock(ctx, "198.51.100.23")
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	require.NoError(t, blacklistRepo.BlockIfAbsent(ctx, &models.BlacklistEntry{
		IPAddress: "198.51.100.23",
		Reason:    "back at it",
		BlockedBy: "admin_1",
	}, 48*time.Hour))
}

func TestGuardIntegration_CleanupPrunesLedger(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	_, ledgerRepo, blacklistRepo := InitializeRepositories(testDB.DB)

	old := &models.LoginAttempt{
		Email:       "old@example.com",
		IPAddress:   "203.0.113.7",
		Success:     false,
		AttemptedAt: time.Now().Add(-31 * 24 * time.Hour),
	}
	require.NoError(t, ledgerRepo.Record(ctx, old))
	recent := &models.LoginAttempt{
		Email:     "recent@example.com",
		IPAddress: "203.0.113.7",
		Success:   false,
	}
	require.NoError(t, ledgerRepo.Record(ctx, recent))

	deleted, err := ledgerRepo.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, blacklistRepo.Block(ctx, &models.BlacklistEntry{
		IPAddress: "198.51.100.9",
		Reason:    "expired entry",
		BlockedBy: models.BlockedBySystem,
	}, time.Nanosecond))

	deactivated, err := blacklistRepo.DeactivateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deactivated)
}
