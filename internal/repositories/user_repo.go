package repositories

import (
	"context"
	"time"

	"github.com/analyticshub/gatekeeper/internal/database"
	"github.com/analyticshub/gatekeeper/internal/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, status, failed_login_attempts, locked_until, last_login_at, last_login_ip, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string
	var lockedUntil, lastLoginAt *time.Time
	var lastLoginIP *string

	err := scanner.Scan(
		&user.ID, &user.Email, &passwordHash, &user.Name,
		&user.Role, &user.Status, &user.FailedLoginAttempts,
		&lockedUntil, &lastLoginAt, &lastLoginIP,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.LockedUntil = lockedUntil
	user.LastLoginAt = lastLoginAt
	user.LastLoginIP = lastLoginIP

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "user"
	}
	if user.Status == "" {
		user.Status = "active"
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, status, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, passwordHash, user.Name,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	))
}

// RecordFailure atomically increments the failed-attempt counter and applies
// the lockout when the new count crosses the threshold. The increment and
// the lock decision happen in one statement so concurrent failures cannot
// lose updates; returns the post-increment count.
func (r *UserRepository) RecordFailure(ctx context.Context, id string, threshold int, lockDuration time.Duration) (int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN $3::timestamptz
		        ELSE locked_until
		    END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	lockedUntil := time.Now().Add(lockDuration)

	var count int
	err := r.db.Pool.QueryRow(ctx, query, id, threshold, lockedUntil).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// ResetLockout clears the failed-attempt counter and any temporary lock.
// Called on every successful authentication.
func (r *UserRepository) ResetLockout(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordLogin stamps the last successful login time and origin IP.
func (r *UserRepository) RecordLogin(ctx context.Context, id, ipAddress string) error {
	query := `
		UPDATE users
		SET last_login_at = now(), last_login_ip = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, ipAddress)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
