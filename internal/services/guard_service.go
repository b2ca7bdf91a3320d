package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/analyticshub/gatekeeper/internal/config"
	"github.com/analyticshub/gatekeeper/internal/models"
	pkgauth "github.com/analyticshub/gatekeeper/pkg/auth"
	pkglogger "github.com/analyticshub/gatekeeper/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// BlockReasonMaxAttempts is the reason recorded on automatic blacklist
// entries created by the guard.
const BlockReasonMaxAttempts = "exceeded maximum login attempts"

// timingEqualizerHash is compared against whenever no real hash is available
// (unknown email, passwordless account). Skipping the bcrypt work on those
// paths would let a caller distinguish them from a wrong password by
// response time, despite the identical deny message.
var timingEqualizerHash = sync.OnceValue(func() string {
	hash, err := pkgauth.HashPassword("gatekeeper-timing-equalizer")
	if err != nil {
		panic(err)
	}
	return hash
})

// LedgerRepository is the append-only login attempt ledger.
type LedgerRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// BlacklistStore tracks IPs currently denied login access.
type BlacklistStore interface {
	IsBlocked(ctx context.Context, ipAddress string) (bool, error)
	Block(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error
	Unblock(ctx context.Context, ipAddress string) (int64, error)
}

// AccountStore is the user store seen by the guard: credential lookup plus
// the lockout counter operations.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RecordFailure(ctx context.Context, id string, threshold int, lockDuration time.Duration) (int, error)
	ResetLockout(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id, ipAddress string) error
}

// SecurityAlerter notifies operators of high-severity guard events.
type SecurityAlerter interface {
	SendBlacklistAlert(ctx context.Context, entry *models.BlacklistEntry) error
}

// LoginInput is one credential submission as seen by the guard.
type LoginInput struct {
	Email     string
	Password  string
	Remember  bool
	IPAddress string
	UserAgent string
}

// GuardService decides ALLOW or DENY for each login attempt, enforcing the
// per-IP blacklist and per-account lockout along the way.
//
// Every evaluation walks: IP check -> ledger write -> credential check ->
// account state check. Store failures on this path fail closed: a login is
// never allowed through because a security store was unreachable.
type GuardService struct {
	ledger      LedgerRepository
	blacklist   BlacklistStore
	accounts    AccountStore
	alerter     SecurityAlerter
	cfg         config.GuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewGuardService creates a new GuardService. alerter may be nil.
func NewGuardService(
	ledger LedgerRepository,
	blacklist BlacklistStore,
	accounts AccountStore,
	alerter SecurityAlerter,
	cfg config.GuardConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *GuardService {
	return &GuardService{
		ledger:      ledger,
		blacklist:   blacklist,
		accounts:    accounts,
		alerter:     alerter,
		cfg:         cfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Authenticate evaluates one login attempt and returns a Decision.
// A non-nil error means an infrastructure failure; the caller must treat it
// as a denied request (fail closed), never as an allow.
func (s *GuardService) Authenticate(ctx context.Context, input LoginInput) (*models.Decision, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return nil, models.ErrBadRequest
	}

	// IP check runs before anything else; a blocked IP never reaches
	// credential validation and leaves no ledger row.
	blocked, err := s.blacklist.IsBlocked(ctx, input.IPAddress)
	if err != nil {
		s.logger.Error("blacklist lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:  "login_denied",
			Email:      input.Email,
			IPAddress:  input.IPAddress,
			UserAgent:  input.UserAgent,
			DenyReason: string(models.DenyIPBlocked),
		})
		return models.Deny(models.DenyIPBlocked), nil
	}

	// The failed row is written speculatively, before the outcome is known.
	// An eventually-successful login therefore leaves two rows: this one and
	// the success row below. The window count for the blacklist threshold
	// runs after this write, so it includes the current attempt.
	if err := s.ledger.Record(ctx, &models.LoginAttempt{
		Email:     input.Email,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Success:   false,
	}); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown email takes the same path as a wrong password so the
			// response cannot distinguish the two, and pays the same bcrypt
			// cost so the timing cannot either.
			_ = pkgauth.ComparePassword(timingEqualizerHash(), input.Password)
			return s.handleFailure(ctx, input, nil)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.PasswordHash == "" {
		_ = pkgauth.ComparePassword(timingEqualizerHash(), input.Password)
		return s.handleFailure(ctx, input, user)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return s.handleFailure(ctx, input, user)
		}
		s.logger.Error("password comparison failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Credentials are valid from here on; account state checks touch no
	// counters.
	if user.Status != "active" {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:  "login_denied",
			UserID:     user.ID,
			Email:      input.Email,
			IPAddress:  input.IPAddress,
			DenyReason: string(models.DenyAccountSuspended),
		})
		return models.Deny(models.DenyAccountSuspended), nil
	}

	if user.IsLocked(time.Now()) {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:  "login_denied",
			UserID:     user.ID,
			Email:      input.Email,
			IPAddress:  input.IPAddress,
			DenyReason: string(models.DenyAccountLocked),
		})
		return models.Deny(models.DenyAccountLocked), nil
	}

	return s.handleSuccess(ctx, input, user)
}

// handleSuccess performs the SUCCESS transition: amnesty for the IP, lockout
// reset, login stamp, success ledger row.
func (s *GuardService) handleSuccess(ctx context.Context, input LoginInput, user *models.User) (*models.Decision, error) {
	entries, err := s.blacklist.Unblock(ctx, input.IPAddress)
	if err != nil {
		s.logger.Error("failed to unblock IP on successful login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if entries > 0 {
		s.auditLogger.LogIPUnblocked(input.IPAddress, models.BlockedBySystem, entries)
	}

	if err := s.accounts.ResetLockout(ctx, user.ID); err != nil {
		s.logger.Error("failed to reset lockout counter", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.accounts.RecordLogin(ctx, user.ID, input.IPAddress); err != nil {
		s.logger.Error("failed to record login", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.ledger.Record(ctx, &models.LoginAttempt{
		Email:     input.Email,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Success:   true,
	}); err != nil {
		s.logger.Error("failed to record successful login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Email:     input.Email,
		IPAddress: input.IPAddress,
		Success:   true,
	})

	return models.Allow(user), nil
}

// handleFailure performs the FAILURE PATH: window count against the ledger,
// conditional auto-blacklist, and the account lockout increment when the
// email maps to a real account. user is nil for unknown emails.
//
// Two concurrent failures can both read a count just under the threshold
// and delay the block by one request. That is accepted: the blacklist is a
// rate limiter, not a hard security boundary, and each individual write
// here is a single atomic statement.
func (s *GuardService) handleFailure(ctx context.Context, input LoginInput, user *models.User) (*models.Decision, error) {
	count, err := s.ledger.CountFailedSince(ctx, input.IPAddress, time.Now().Add(-s.cfg.IPWindow))
	if err != nil {
		s.logger.Error("failed to count failed attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if count >= s.cfg.MaxFailedPerIP {
		entry := &models.BlacklistEntry{
			IPAddress:      input.IPAddress,
			Reason:         BlockReasonMaxAttempts,
			BlockedBy:      models.BlockedBySystem,
			AttemptedEmail: &input.Email,
			AttemptCount:   count,
		}
		if err := s.blacklist.Block(ctx, entry, s.cfg.BlockDuration); err != nil {
			s.logger.Error("failed to blacklist IP", slog.String("ip", input.IPAddress), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.auditLogger.LogIPBlacklisted(input.IPAddress, entry.Reason, entry.BlockedBy, count, entry.ExpiresAt)

		// The alert is a side channel; its failure never fails the request.
		if s.alerter != nil {
			if err := s.alerter.SendBlacklistAlert(ctx, entry); err != nil {
				s.logger.Error("failed to send blacklist alert", slog.Any("error", err))
			}
		}
	}

	if user != nil {
		newCount, err := s.accounts.RecordFailure(ctx, user.ID, s.cfg.MaxFailedPerAccount, s.cfg.LockoutDuration)
		if err != nil {
			s.logger.Error("failed to record account failure", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if newCount >= s.cfg.MaxFailedPerAccount {
			s.auditLogger.LogAccountLocked(user.ID, newCount)
		}
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:  "login_failed",
		Email:      input.Email,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
		DenyReason: string(models.DenyInvalidCredentials),
	})

	return models.Deny(models.DenyInvalidCredentials), nil
}
