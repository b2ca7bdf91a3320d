package services

import (
	"context"
	"time"

	"github.com/analyticshub/gatekeeper/internal/config"
	"github.com/analyticshub/gatekeeper/internal/models"
)

// MockLedgerRepository implements LedgerRepository for testing
type MockLedgerRepository struct {
	RecordFunc           func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedSinceFunc func(ctx context.Context, ipAddress string, since time.Time) (int, error)

	Recorded []*models.LoginAttempt
}

func (m *MockLedgerRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	m.Recorded = append(m.Recorded, attempt)
	return nil
}

func (m *MockLedgerRepository) CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountFailedSinceFunc != nil {
		return m.CountFailedSinceFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

// MockBlacklistStore implements BlacklistStore for testing
type MockBlacklistStore struct {
	IsBlockedFunc func(ctx context.Context, ipAddress string) (bool, error)
	BlockFunc     func(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error
	UnblockFunc   func(ctx context.Context, ipAddress string) (int64, error)

	Blocked     []*models.BlacklistEntry
	UnblockedIP []string
}

func (m *MockBlacklistStore) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockBlacklistStore) Block(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, entry, duration)
	}
	if duration > 0 {
		expiresAt := time.Now().Add(duration)
		entry.ExpiresAt = &expiresAt
	}
	m.Blocked = append(m.Blocked, entry)
	return nil
}

func (m *MockBlacklistStore) Unblock(ctx context.Context, ipAddress string) (int64, error) {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, ipAddress)
	}
	m.UnblockedIP = append(m.UnblockedIP, ipAddress)
	return 0, nil
}

// MockAccountStore implements AccountStore for testing
type MockAccountStore struct {
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	RecordFailureFunc func(ctx context.Context, id string, threshold int, lockDuration time.Duration) (int, error)
	ResetLockoutFunc  func(ctx context.Context, id string) error
	RecordLoginFunc   func(ctx context.Context, id, ipAddress string) error

	FailuresRecorded int
	LockoutsReset    int
	LoginsRecorded   int
}

func (m *MockAccountStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountStore) RecordFailure(ctx context.Context, id string, threshold int, lockDuration time.Duration) (int, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, id, threshold, lockDuration)
	}
	m.FailuresRecorded++
	return m.FailuresRecorded, nil
}

func (m *MockAccountStore) ResetLockout(ctx context.Context, id string) error {
	if m.ResetLockoutFunc != nil {
		return m.ResetLockoutFunc(ctx, id)
	}
	m.LockoutsReset++
	return nil
}

func (m *MockAccountStore) RecordLogin(ctx context.Context, id, ipAddress string) error {
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id, ipAddress)
	}
	m.LoginsRecorded++
	return nil
}

// MockSecurityAlerter implements SecurityAlerter for testing
type MockSecurityAlerter struct {
	SendBlacklistAlertFunc func(ctx context.Context, entry *models.BlacklistEntry) error

	Sent []*models.BlacklistEntry
}

func (m *MockSecurityAlerter) SendBlacklistAlert(ctx context.Context, entry *models.BlacklistEntry) error {
	if m.SendBlacklistAlertFunc != nil {
		return m.SendBlacklistAlertFunc(ctx, entry)
	}
	m.Sent = append(m.Sent, entry)
	return nil
}

// DefaultTestGuardConfig returns the production guard policy for tests
func DefaultTestGuardConfig() config.GuardConfig {
	return config.GuardConfig{
		MaxFailedPerIP:      30,
		IPWindow:            1 * time.Hour,
		BlockDuration:       24 * time.Hour,
		MaxFailedPerAccount: 5,
		LockoutDuration:     15 * time.Minute,
		LedgerRetention:     30 * 24 * time.Hour,
		CleanupInterval:     1 * time.Hour,
	}
}

// NewTestUser creates an active test user
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      "user",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword creates a user with the given password hash
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithStatus creates a user with the given status
func NewTestUserWithStatus(id, email, name, status string) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	return user
}

// NewTestUserLocked creates a user locked for another 30 minutes
func NewTestUserLocked(id, email, name string) *models.User {
	user := NewTestUser(id, email, name)
	lockedUntil := time.Now().Add(30 * time.Minute)
	user.LockedUntil = &lockedUntil
	user.FailedLoginAttempts = 5
	return user
}
