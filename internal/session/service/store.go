// Package service implements the session store: token issuance, refresh, expiry and revocation
// on top of a session repository.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"sessionguard/internal/clock"
	"sessionguard/internal/security"
	"sessionguard/internal/session/domain"
	"sessionguard/internal/session/repository"
)

// ErrUserIDRequired is returned when a session is requested without an owning user.
var ErrUserIDRequired = errors.New("session: user id is required")

// TokenGenerator produces opaque session tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// Store owns session records. ReadByToken is the only authority on whether a session is live;
// expiry is evaluated against the clock on every read, whether or not a sweep has run.
type Store struct {
	repo    repository.Repository
	tokens  TokenGenerator
	clock   clock.Clock
	timeout time.Duration
}

// NewStore returns a Store issuing sessions that live for timeout. timeout must be positive.
func NewStore(repo repository.Repository, tokens TokenGenerator, clk clock.Clock, timeout time.Duration) *Store {
	return &Store{repo: repo, tokens: tokens, clock: clk, timeout: timeout}
}

// Timeout returns the session lifetime applied on create and refresh.
func (s *Store) Timeout() time.Duration { return s.timeout }

// ReadByToken returns the live session for token, or nil if it is absent or expired.
// An expired record found here is deleted best-effort.
func (s *Store) ReadByToken(ctx context.Context, token string) (*domain.Session, error) {
	if !security.WellFormedToken(token) {
		return nil, nil
	}
	sess, err := s.repo.GetByToken(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	if !security.TokenEqual(sess.Token, token) {
		return nil, nil
	}
	if sess.Expired(s.clock.Now()) {
		// A refresh always rotates the token, so deleting by this token cannot remove a newer session.
		if _, err := s.repo.DeleteByToken(ctx, token); err != nil {
			log.Printf("session: lazy delete of expired session failed: %v", err)
		}
		return nil, nil
	}
	return sess, nil
}

// CreateOrRefresh issues a fresh token for the (userID, deviceID) slot and extends its expiry.
// deviceID may be empty for the user's default slot. Any previous token for the slot stops resolving.
func (s *Store) CreateOrRefresh(ctx context.Context, userID, deviceID string) (*domain.Session, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	token, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, &domain.Session{
		Token:          token,
		UserID:         userID,
		DeviceID:       deviceID,
		ExpirationDate: s.clock.Now().Add(s.timeout),
	})
}

// Delete removes the session for token. Returns the session if it was live, nil otherwise; deleting
// an unknown or expired token is not an error.
func (s *Store) Delete(ctx context.Context, token string) (*domain.Session, error) {
	if !security.WellFormedToken(token) {
		return nil, nil
	}
	sess, err := s.repo.DeleteByToken(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.clock.Now()) {
		return nil, nil
	}
	return sess, nil
}

// DeleteAllForUser removes every session of userID and returns the count.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return s.repo.DeleteByUser(ctx, userID)
}

// DeleteAllForDevice removes every session bound to deviceID and returns the count.
// An empty deviceID matches nothing; default-slot sessions are not bound to a device.
func (s *Store) DeleteAllForDevice(ctx context.Context, deviceID string) (int, error) {
	if deviceID == "" {
		return 0, nil
	}
	return s.repo.DeleteByDevice(ctx, deviceID)
}

// PurgeExpired removes sessions that have expired by now. Reads stay correct without it.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
