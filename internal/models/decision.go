package models

// DenyReason identifies why a login attempt was refused.
type DenyReason string

const (
	DenyIPBlocked          DenyReason = "ip_blocked"
	DenyInvalidCredentials DenyReason = "invalid_credentials"
	DenyAccountSuspended   DenyReason = "account_suspended"
	DenyAccountLocked      DenyReason = "account_locked"
)

// Decision is the outcome of evaluating one login attempt. User is set only
// on an allow.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	User    *User
}

// Allow returns an allowing decision for the authenticated user.
func Allow(user *User) *Decision {
	return &Decision{Allowed: true, User: user}
}

// Deny returns a denying decision with the given reason.
func Deny(reason DenyReason) *Decision {
	return &Decision{Allowed: false, Reason: reason}
}
