package repository

import (
	"context"
	"time"

	"sessionguard/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations do not evaluate expiry on reads;
// the session store does that against its clock.
type Repository interface {
	// GetByToken returns the session stored under token, or nil if none.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	// Upsert atomically replaces the token and expiration of the session keyed by (UserID, DeviceID),
	// inserting it if absent, and returns the stored record. The previous token stops resolving.
	Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error)
	// DeleteByToken removes the session and returns it, or nil if there was none.
	DeleteByToken(ctx context.Context, token string) (*domain.Session, error)
	// DeleteByUser removes every session of userID and returns how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int, error)
	// DeleteByDevice removes every session bound to deviceID and returns how many were removed.
	DeleteByDevice(ctx context.Context, deviceID string) (int, error)
	// DeleteExpired removes sessions whose expiration is at or before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
