package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType  string
	UserID     string
	Email      string
	IPAddress  string
	UserAgent  string
	Success    bool
	DenyReason string
	Metadata   map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs the outcome of a guard evaluation. Emails are masked;
// the raw value lives in the ledger, not the log stream.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.DenyReason != "" {
		attrs = append(attrs, slog.String("deny_reason", event.DenyReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogIPBlacklisted logs an automatic or manual IP block at high severity.
func (al *AuditLogger) LogIPBlacklisted(ipAddress, reason, blockedBy string, attemptCount int, expiresAt *time.Time) {
	attrs := []slog.Attr{
		slog.String("audit_type", "blacklist"),
		slog.String("event_type", "ip_blacklisted"),
		slog.String("ip_address", ipAddress),
		slog.String("reason", reason),
		slog.String("blocked_by", blockedBy),
		slog.Int("attempt_count", attemptCount),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if expiresAt != nil {
		attrs = append(attrs, slog.String("expires_at", expiresAt.UTC().Format(time.RFC3339)))
	} else {
		attrs = append(attrs, slog.String("expires_at", "never"))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelError, "audit", attrs...)
}

// LogIPUnblocked logs blacklist deactivation (amnesty or admin action).
func (al *AuditLogger) LogIPUnblocked(ipAddress, unblockedBy string, entries int64) {
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		slog.String("audit_type", "blacklist"),
		slog.String("event_type", "ip_unblocked"),
		slog.String("ip_address", ipAddress),
		slog.String("unblocked_by", unblockedBy),
		slog.Int64("entries_deactivated", entries),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogAccountLocked logs an account crossing the lockout threshold.
func (al *AuditLogger) LogAccountLocked(userID string, failedAttempts int) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "lockout"),
		slog.String("event_type", "account_locked"),
		slog.String("user_id", userID),
		slog.Int("failed_attempts", failedAttempts),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
