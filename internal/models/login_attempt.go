package models

import "time"

// LoginAttempt is a single row in the append-only login attempt ledger.
// Rows are never updated or deleted by the guard; the background cleanup
// prunes rows far outside the decision window.
type LoginAttempt struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
	Success     bool      `db:"success"`
	AttemptedAt time.Time `db:"attempted_at"`
}
