package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/analyticshub/gatekeeper/internal/repositories"
)

// CleanupManager periodically prunes old ledger rows and deactivates expired
// blacklist entries. Both are pure housekeeping: the guard honors window and
// expiry at query time, so a delayed sweep never changes a login decision.
type CleanupManager struct {
	ledgerRepo    *repositories.LoginAttemptRepository
	blacklistRepo *repositories.BlacklistRepository
	retention     time.Duration
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	ledgerRepo *repositories.LoginAttemptRepository,
	blacklistRepo *repositories.BlacklistRepository,
	retention time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		ledgerRepo:    ledgerRepo,
		blacklistRepo: blacklistRepo,
		retention:     retention,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup prunes the attempt ledger and the blacklist
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-cm.retention)
	rowsDeleted, err := cm.ledgerRepo.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune login attempt ledger", slog.Any("error", err))
	} else if rowsDeleted > 0 {
		cm.logger.Info("login attempt ledger pruned",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff))
	}

	deactivated, err := cm.blacklistRepo.DeactivateExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to deactivate expired blacklist entries", slog.Any("error", err))
	} else if deactivated > 0 {
		cm.logger.Info("expired blacklist entries deactivated", slog.Int64("entries", deactivated))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
