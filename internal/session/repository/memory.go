package repository

import (
	"context"
	"sync"
	"time"

	"sessionguard/internal/session/domain"
)

type slotKey struct {
	userID   string
	deviceID string
}

// MemoryRepository is an in-process Repository guarded by a single mutex.
type MemoryRepository struct {
	mu      sync.Mutex
	byToken map[string]domain.Session
	bySlot  map[slotKey]string
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byToken: make(map[string]domain.Session),
		bySlot:  make(map[slotKey]string),
	}
}

// GetByToken returns a copy of the session for token, or nil if not found.
func (r *MemoryRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Upsert replaces the slot's token under the lock, so concurrent upserts for one slot serialize.
func (r *MemoryRepository) Upsert(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := slotKey{userID: s.UserID, deviceID: s.DeviceID}
	if old, ok := r.bySlot[key]; ok {
		delete(r.byToken, old)
	}
	stored := *s
	r.byToken[stored.Token] = stored
	r.bySlot[key] = stored.Token
	return &stored, nil
}

// DeleteByToken removes the session for token and returns it, or nil if not found.
func (r *MemoryRepository) DeleteByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, nil
	}
	r.removeLocked(s)
	return &s, nil
}

// DeleteByUser removes all sessions for userID.
func (r *MemoryRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID }), nil
}

// DeleteByDevice removes all sessions bound to deviceID.
func (r *MemoryRepository) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.DeviceID == deviceID }), nil
}

// DeleteExpired removes sessions expiring at or before cutoff.
func (r *MemoryRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return !s.ExpirationDate.After(cutoff) }), nil
}

func (r *MemoryRepository) deleteWhere(match func(domain.Session) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byToken {
		if match(s) {
			r.removeLocked(s)
			n++
		}
	}
	return n
}

func (r *MemoryRepository) removeLocked(s domain.Session) {
	delete(r.byToken, s.Token)
	key := slotKey{userID: s.UserID, deviceID: s.DeviceID}
	if r.bySlot[key] == s.Token {
		delete(r.bySlot, key)
	}
}
