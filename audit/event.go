package audit

import (
	"context"
	"time"
)

// EventType is the stable name of a security event, used by log parsers.
type EventType string

const (
	LoginSuccess              EventType = "LOGIN_SUCCESS"
	LoginFailed               EventType = "LOGIN_FAILED"
	LoginBlockedLocked        EventType = "LOGIN_BLOCKED_LOCKED"
	LoginBlockedInactive      EventType = "LOGIN_BLOCKED_INACTIVE"
	AccountLocked             EventType = "ACCOUNT_LOCKED"
	AccountUnlocked           EventType = "ACCOUNT_UNLOCKED"
	Logout                    EventType = "LOGOUT"
	PasswordResetRequested    EventType = "PASSWORD_RESET_REQUESTED"
	PasswordResetEmailSent    EventType = "PASSWORD_RESET_EMAIL_SENT"
	PasswordResetInvalidToken EventType = "PASSWORD_RESET_INVALID_TOKEN"
	PasswordResetCompleted    EventType = "PASSWORD_RESET_COMPLETED"
	ProfileUpdated            EventType = "PROFILE_UPDATED"
)

// Event is a structured audit record of an authentication-relevant change.
type Event struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	AccountID     string            `json:"account_id,omitempty"`
	Type          EventType         `json:"event_type"`
	SourceAddress string            `json:"source_address,omitempty"`
	Details       string            `json:"details,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type sourceAddressContextKey struct{}

// WithSourceAddress attaches the caller's network address to ctx. Emitted
// events pick it up automatically.
func WithSourceAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, sourceAddressContextKey{}, addr)
}

// SourceAddressFromContext returns the address stored by WithSourceAddress.
func SourceAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	addr, _ := ctx.Value(sourceAddressContextKey{}).(string)
	return addr
}
