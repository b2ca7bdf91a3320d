package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery-staple", hash)

	assert.NoError(t, ComparePassword(hash, "correct-horse-battery-staple"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong-password"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestComparePassword_EmptyHashFails(t *testing.T) {
	// An account without a password hash must never validate.
	assert.Error(t, ComparePassword("", "anything"))
}

func TestHashPassword_Cost(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)
}
