package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/analyticshub/gatekeeper/internal/database"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BlacklistRepository tracks which IPs are currently denied login access.
type BlacklistRepository struct {
	db *database.DB
}

// NewBlacklistRepository creates a new BlacklistRepository
func NewBlacklistRepository(db *database.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// IsBlocked reports whether any active, unexpired entry exists for the IP.
// Expiry is honored at query time; nothing depends on a background sweep.
func (r *BlacklistRepository) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blacklisted_ips
			WHERE ip_address = $1
			  AND status = 'active'
			  AND (expires_at IS NULL OR expires_at > now())
		)
	`

	var blocked bool
	err := r.db.Pool.QueryRow(ctx, query, ipAddress).Scan(&blocked)
	return blocked, database.MapPostgresError(err)
}

// Block inserts a new active entry for the IP. A zero duration means the
// block is indefinite (used for manual admin blocks).
func (r *BlacklistRepository) Block(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error {
	entry.ID = uuid.New().String()
	entry.BlockedAt = time.Now()
	entry.Status = models.BlacklistStatusActive
	if duration > 0 {
		expiresAt := entry.BlockedAt.Add(duration)
		entry.ExpiresAt = &expiresAt
	}

	query := `
		INSERT INTO blacklisted_ips (id, ip_address, reason, blocked_by, attempted_email, attempt_count, blocked_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID,
		entry.IPAddress,
		entry.Reason,
		entry.BlockedBy,
		entry.AttemptedEmail,
		entry.AttemptCount,
		entry.BlockedAt,
		entry.ExpiresAt,
		entry.Status,
	)

	return database.MapPostgresError(err)
}

// BlockIfAbsent inserts an active entry only when the IP has no active,
// unexpired entry already, returning models.ErrConflict otherwise. The check
// and insert run in one transaction so two concurrent admin requests cannot
// both succeed. Used for manual blocks; automatic guard blocks use Block,
// where overlapping entries are tolerated.
func (r *BlacklistRepository) BlockIfAbsent(ctx context.Context, entry *models.BlacklistEntry, duration time.Duration) error {
	entry.ID = uuid.New().String()
	entry.BlockedAt = time.Now()
	entry.Status = models.BlacklistStatusActive
	if duration > 0 {
		expiresAt := entry.BlockedAt.Add(duration)
		entry.ExpiresAt = &expiresAt
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM blacklisted_ips
				WHERE ip_address = $1
				  AND status = 'active'
				  AND (expires_at IS NULL OR expires_at > now())
			)
		`, entry.IPAddress).Scan(&exists)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if exists {
			return models.ErrConflict
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO blacklisted_ips (id, ip_address, reason, blocked_by, attempted_email, attempt_count, blocked_at, expires_at, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			entry.ID,
			entry.IPAddress,
			entry.Reason,
			entry.BlockedBy,
			entry.AttemptedEmail,
			entry.AttemptCount,
			entry.BlockedAt,
			entry.ExpiresAt,
			entry.Status,
		)
		return database.MapPostgresError(err)
	})
}

// Unblock deactivates every active entry for the IP. Returns the number of
// entries flipped; zero is not an error (amnesty on a never-blocked IP is a
// no-op).
func (r *BlacklistRepository) Unblock(ctx context.Context, ipAddress string) (int64, error) {
	query := `
		UPDATE blacklisted_ips SET status = 'inactive'
		WHERE ip_address = $1 AND status = 'active'
	`

	tag, err := r.db.Pool.Exec(ctx, query, ipAddress)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// GetActiveEntry returns the most recent active, unexpired entry for an IP.
func (r *BlacklistRepository) GetActiveEntry(ctx context.Context, ipAddress string) (*models.BlacklistEntry, error) {
	query := `
		SELECT id, ip_address, reason, blocked_by, attempted_email, attempt_count, blocked_at, expires_at, status
		FROM blacklisted_ips
		WHERE ip_address = $1
		  AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY blocked_at DESC
		LIMIT 1
	`

	return scanBlacklistRow(r.db.Pool.QueryRow(ctx, query, ipAddress))
}

// ListActive returns active, unexpired entries ordered by recency.
func (r *BlacklistRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.BlacklistEntry, error) {
	query := `
		SELECT id, ip_address, reason, blocked_by, attempted_email, attempt_count, blocked_at, expires_at, status
		FROM blacklisted_ips
		WHERE status = 'active'
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY blocked_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.BlacklistEntry, 0)
	for rows.Next() {
		entry, err := scanBlacklistRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// DeactivateExpired flips long-expired active entries to inactive. Pure
// housekeeping: IsBlocked already filters expiry at query time.
func (r *BlacklistRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE blacklisted_ips SET status = 'inactive'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= now()
	`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlacklistRow(scanner rowScanner) (*models.BlacklistEntry, error) {
	var entry models.BlacklistEntry
	var attemptedEmail *string
	var expiresAt *time.Time

	err := scanner.Scan(
		&entry.ID, &entry.IPAddress, &entry.Reason, &entry.BlockedBy,
		&attemptedEmail, &entry.AttemptCount, &entry.BlockedAt,
		&expiresAt, &entry.Status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, database.MapPostgresError(err)
	}

	entry.AttemptedEmail = attemptedEmail
	entry.ExpiresAt = expiresAt

	return &entry, nil
}
