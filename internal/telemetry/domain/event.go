// Package domain holds the security event emitted on login and session transitions.
package domain

import "time"

// EventType names a security event.
type EventType string

const (
	EventLoginFailed     EventType = "login_failed"
	EventAccountLocked   EventType = "account_locked"
	EventAccountDisabled EventType = "account_disabled"
	EventSessionIssued   EventType = "session_issued"
	EventSessionRevoked  EventType = "session_revoked"
	// EventAuthRejected is a protected RPC refused for a missing, expired or unknown bearer token.
	EventAuthRejected EventType = "auth_rejected"
)

// Event is a security event. UserID and DeviceID are empty when unknown.
// It never carries a session token.
type Event struct {
	Type      EventType         `json:"event_type"`
	Source    string            `json:"source"`
	UserID    string            `json:"user_id,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
