package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserIsLocked(t *testing.T) {
	now := time.Now()

	unlocked := &User{}
	assert.False(t, unlocked.IsLocked(now))

	future := now.Add(10 * time.Minute)
	locked := &User{LockedUntil: &future}
	assert.True(t, locked.IsLocked(now))

	past := now.Add(-1 * time.Second)
	expired := &User{LockedUntil: &past}
	assert.False(t, expired.IsLocked(now))

	// Boundary: a lock expiring exactly now is no longer in force.
	exact := &User{LockedUntil: &now}
	assert.False(t, exact.IsLocked(now))
}
