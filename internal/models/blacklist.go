package models

import "time"

const (
	BlacklistStatusActive   = "active"
	BlacklistStatusInactive = "inactive"

	// BlockedBySystem marks entries created automatically by the login guard,
	// as opposed to an admin's user ID on manual blocks.
	BlockedBySystem = "system"
)

// BlacklistEntry is one block placed on an IP address. Entries are never
// deleted; lifting a block flips Status to inactive so the history survives.
type BlacklistEntry struct {
	ID             string
	IPAddress      string
	Reason         string
	BlockedBy      string
	AttemptedEmail *string // email on the attempt that tripped the threshold
	AttemptCount   int
	BlockedAt      time.Time
	ExpiresAt      *time.Time // nil means indefinite
	Status         string
}
