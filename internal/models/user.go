package models

import (
	"time"
)

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	Role                string // e.g., "user", "admin"
	Status              string // "active", "suspended", "disabled"
	FailedLoginAttempts int
	LockedUntil         *time.Time // Temporary account lock expiration
	LastLoginAt         *time.Time
	LastLoginIP         *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is under a temporary lockout.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
