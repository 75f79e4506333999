// SPDX-License-Identifier: MIT

// Package audit provides structured audit logging for security-sensitive operations.
// It follows the WHO/WHAT/WHEN pattern for compliance and forensics.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/seedlab/seedlab/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Configuration events
	EventConfigReload     EventType = "config.reload"
	EventCacheInvalidated EventType = "system.cache_invalidated"

	// Authentication events
	EventLoginSuccess  EventType = "auth.login.success"
	EventLoginFailure  EventType = "auth.login.failure"
	EventLoginLocked   EventType = "auth.login.locked"
	EventLogout        EventType = "auth.logout"
	EventPasswordReset EventType = "auth.password.changed"

	// Second factor events
	EventTwoFactorEnabled   EventType = "auth.2fa.enabled"
	EventTwoFactorDisabled  EventType = "auth.2fa.disabled"
	EventBackupCodeUsed     EventType = "auth.2fa.backup_code_used"
	EventBackupCodesRenewed EventType = "auth.2fa.backup_codes_regenerated"
	EventDeviceTrusted      EventType = "auth.device.trusted"
	EventDeviceRevoked      EventType = "auth.device.revoked"

	// Recovery events
	EventRecoveryRequested EventType = "auth.recovery.requested"
	EventRecoveryCompleted EventType = "auth.recovery.completed"
	EventRecoveryFailed    EventType = "auth.recovery.failed"

	// User administration events
	EventUserApproved    EventType = "user.approved"
	EventUserRejected    EventType = "user.rejected"
	EventUserRoleChanged EventType = "user.role_changed"
	EventUserDeactivated EventType = "user.deactivated"
	EventUserReactivated EventType = "user.reactivated"

	// API access events
	EventAPIForbidden EventType = "api.forbidden"
	EventAPIRateLimit EventType = "api.ratelimit"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`             // WHO: username, IP, or "system"
	Action     string            `json:"action"`            // WHAT: human-readable action description
	Resource   string            `json:"resource"`          // Resource affected (user, device, endpoint)
	Result     string            `json:"result"`            // success, failure, denied
	RemoteAddr string            `json:"remote_addr"`       // Client IP address
	UserAgent  string            `json:"user_agent"`        // Client user agent
	RequestID  string            `json:"request_id"`        // Correlation ID
	Details    map[string]string `json:"details,omitempty"` // Additional context
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith wraps an existing zerolog logger.
func NewLoggerWith(base zerolog.Logger) *Logger {
	return &Logger{logger: base.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	logEvent := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		logEvent.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		logEvent.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		logEvent.Str("request_id", event.RequestID)
	}

	for key, value := range event.Details {
		logEvent.Str(key, value)
	}

	logEvent.Msg("audit event")
}

// LogFromContext logs an audit event, filling request ID and client data from ctx.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(ctx)
	}
	c := log.ClientFromContext(ctx)
	if event.RemoteAddr == "" {
		event.RemoteAddr = c.IP
	}
	if event.UserAgent == "" {
		event.UserAgent = c.UserAgent
	}
	l.Log(event)
}

// ConfigReload logs a configuration reload event.
func (l *Logger) ConfigReload(actor, result string, details map[string]string) {
	l.Log(Event{
		Type:     EventConfigReload,
		Actor:    actor,
		Action:   "reloaded configuration",
		Resource: "config",
		Result:   result,
		Details:  details,
	})
}

// LoginSuccess logs a successful login. method is password, totp, backup_code or trusted_device.
func (l *Logger) LoginSuccess(ctx context.Context, username, method string) {
	l.LogFromContext(ctx, Event{
		Type:     EventLoginSuccess,
		Actor:    username,
		Action:   "logged in",
		Resource: "session",
		Result:   "success",
		Details:  map[string]string{"method": method},
	})
}

// LoginFailure logs a failed login attempt.
func (l *Logger) LoginFailure(ctx context.Context, username, reason string) {
	l.LogFromContext(ctx, Event{
		Type:     EventLoginFailure,
		Actor:    username,
		Action:   "login failed",
		Resource: "session",
		Result:   "failure",
		Details:  map[string]string{"reason": reason},
	})
}

// LoginLocked logs an account lockout.
func (l *Logger) LoginLocked(ctx context.Context, username string, until time.Duration) {
	l.LogFromContext(ctx, Event{
		Type:     EventLoginLocked,
		Actor:    username,
		Action:   "account locked after repeated failures",
		Resource: "user:" + username,
		Result:   "denied",
		Details:  map[string]string{"locked_for_s": strconv.FormatInt(int64(until.Seconds()), 10)},
	})
}

// Security logs a security event performed by actor on their own account or on subject.
func (l *Logger) Security(ctx context.Context, typ EventType, actor, action string, subjectID int64) {
	l.LogFromContext(ctx, Event{
		Type:     typ,
		Actor:    actor,
		Action:   action,
		Resource: "user:" + strconv.FormatInt(subjectID, 10),
		Result:   "success",
	})
}

// UserAdmin logs an administrative change to another user.
func (l *Logger) UserAdmin(ctx context.Context, typ EventType, actor string, subjectID int64, details map[string]string) {
	l.LogFromContext(ctx, Event{
		Type:     typ,
		Actor:    actor,
		Action:   string(typ),
		Resource: "user:" + strconv.FormatInt(subjectID, 10),
		Result:   "success",
		Details:  details,
	})
}

// Forbidden logs a request rejected by authorization.
func (l *Logger) Forbidden(ctx context.Context, actor, endpoint string) {
	l.LogFromContext(ctx, Event{
		Type:     EventAPIForbidden,
		Actor:    actor,
		Action:   "insufficient scope",
		Resource: endpoint,
		Result:   "denied",
	})
}

// RateLimitExceeded logs rate limit violations.
func (l *Logger) RateLimitExceeded(remoteAddr, endpoint string) {
	l.Log(Event{
		Type:       EventAPIRateLimit,
		Actor:      remoteAddr,
		Action:     "rate limit exceeded",
		Resource:   endpoint,
		Result:     "denied",
		RemoteAddr: remoteAddr,
	})
}
