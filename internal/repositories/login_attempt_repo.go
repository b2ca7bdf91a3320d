package repositories

import (
	"context"
	"time"

	"github.com/analyticshub/gatekeeper/internal/database"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/google/uuid"
)

// LoginAttemptRepository is the append-only ledger of login attempts.
// Rows are inserted by the guard and only ever read afterwards; retention
// pruning runs out of band in the cleanup manager.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record appends a login attempt to the ledger.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, success, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.AttemptedAt,
	)

	return database.MapPostgresError(err)
}

// CountFailedSince returns the number of failed attempts from an IP within
// a time window. This gates a security decision, so it always hits the
// database; no caching.
func (r *LoginAttemptRepository) CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = false AND attempted_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteOlderThan prunes ledger rows past the retention cutoff. Called only
// by the background cleanup, never from the login path.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempted_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
