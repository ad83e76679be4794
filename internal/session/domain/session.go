package domain

import "time"

// Session is a token-keyed record asserting that a user, optionally on a given device, is authenticated.
// There is at most one live session per (UserID, DeviceID); an empty DeviceID is the user's default slot.
type Session struct {
	Token          string
	UserID         string
	DeviceID       string
	ExpirationDate time.Time
}

// Expired reports whether the session is invalid at now. A session is invalid at and after its expiration instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpirationDate)
}

// Principal is the identity resolved from a live session.
type Principal struct {
	UserID   string
	DeviceID string
}

// Principal returns the identity carried by the session.
func (s *Session) Principal() Principal {
	return Principal{UserID: s.UserID, DeviceID: s.DeviceID}
}
