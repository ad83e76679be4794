// Package service implements the authentication gate: it resolves bearer tokens to principals, issues sessions
// after a successful credential check and drives the lockout policy on failed ones.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"sessionguard/internal/clock"
	"sessionguard/internal/lockout"
	"sessionguard/internal/platform/storage"
	sessiondomain "sessionguard/internal/session/domain"
	"sessionguard/internal/telemetry"
	telemetrydomain "sessionguard/internal/telemetry/domain"
	userdomain "sessionguard/internal/user/domain"
)

// Sentinel errors for the gate; the transport maps every ErrUnauthenticated to one generic status.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrAccountLocked   = fmt.Errorf("%w: account locked", ErrUnauthenticated)
	ErrAccountDisabled = fmt.Errorf("%w: account disabled", ErrUnauthenticated)
	ErrUserNotFound    = errors.New("user not found")
	// ErrConflict is returned when the security state kept changing underneath every update attempt.
	ErrConflict = errors.New("security state update conflicted; retry later")
)

// maxUpdateAttempts bounds the optimistic read-modify-write loop on a user's security state.
const maxUpdateAttempts = 3

const eventSource = "gate"

// UserRepo is the minimal user repository needed by the gate.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateSecurity(ctx context.Context, id string, expectedVersion int64, state lockout.SecurityState, enabled bool) (int64, error)
}

// SessionStore is the minimal session store needed by the gate.
type SessionStore interface {
	ReadByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	CreateOrRefresh(ctx context.Context, userID, deviceID string) (*sessiondomain.Session, error)
	Delete(ctx context.Context, token string) (*sessiondomain.Session, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	DeleteAllForDevice(ctx context.Context, deviceID string) (int, error)
}

// Gate is the authentication gate. It is safe for concurrent use.
type Gate struct {
	users           UserRepo
	sessions        SessionStore
	policy          lockout.Config
	clock           clock.Clock
	events          telemetry.EventEmitter
	revokeOnDisable bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithEventEmitter sets the emitter for security events. Emission is asynchronous and best-effort.
func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(g *Gate) { g.events = e }
}

// WithRevokeOnDisable controls whether disabling an account deletes all of its sessions. Default true.
func WithRevokeOnDisable(revoke bool) Option {
	return func(g *Gate) { g.revokeOnDisable = revoke }
}

// NewGate returns a Gate applying policy to the users in users and issuing sessions from sessions.
func NewGate(users UserRepo, sessions SessionStore, policy lockout.Config, clk clock.Clock, opts ...Option) *Gate {
	g := &Gate{
		users:           users,
		sessions:        sessions,
		policy:          policy,
		clock:           clk,
		revokeOnDisable: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve maps a bearer token to the principal of its live session. Absent or expired sessions yield
// ErrUnauthenticated; storage failures are returned as they are.
func (g *Gate) Resolve(ctx context.Context, token string) (sessiondomain.Principal, error) {
	sess, err := g.sessions.ReadByToken(ctx, token)
	if err != nil {
		return sessiondomain.Principal{}, err
	}
	if sess == nil {
		return sessiondomain.Principal{}, ErrUnauthenticated
	}
	return sess.Principal(), nil
}

// IsBlocked reports whether the user's logins are currently refused.
func (g *Gate) IsBlocked(ctx context.Context, userID string) (bool, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrUserNotFound
	}
	return lockout.IsBlocked(u.Security, u.Enabled, g.clock.Now()), nil
}

// IssueSession issues or refreshes the session for (userID, deviceID) and then applies the success transition
// to the user's security state. The caller has verified credentials. A blocked account is refused with
// ErrAccountLocked or ErrAccountDisabled and its state is left untouched.
//
// The session is created first so that a token or storage failure leaves the failure counters as they were.
// If the state update then fails, or finds the account blocked, the new session is deleted again.
func (g *Gate) IssueSession(ctx context.Context, userID, deviceID string) (*sessiondomain.Session, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if err := blockedError(u, g.clock.Now()); err != nil {
		return nil, err
	}

	sess, err := g.sessions.CreateOrRefresh(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	_, _, err = g.updateSecurity(ctx, userID, func(u *userdomain.User, now time.Time) (transition, error) {
		if err := blockedError(u, now); err != nil {
			return transition{}, err
		}
		next := lockout.RecordSuccess(u.Security)
		return transition{
			result:  lockout.Result{Next: next},
			enabled: u.Enabled,
			skip:    lockout.Equal(next, u.Security),
		}, nil
	})
	if err != nil {
		if _, derr := g.sessions.Delete(context.WithoutCancel(ctx), sess.Token); derr != nil {
			log.Printf("identity: withdraw session of user %s after failed issue: %v", userID, derr)
		}
		return nil, err
	}
	g.emit(ctx, telemetrydomain.EventSessionIssued, userID, deviceID, nil)
	return sess, nil
}

// RecordFailedAttempt applies the failure transition to the user's persisted security state and reports
// whether this attempt disabled the account. The disabled flag is written in the same conditional update.
func (g *Gate) RecordFailedAttempt(ctx context.Context, userID string) (bool, error) {
	u, tr, err := g.updateSecurity(ctx, userID, func(u *userdomain.User, now time.Time) (transition, error) {
		res := lockout.RecordFailure(u.Security, u.Enabled, g.policy, now)
		return transition{
			result:  res,
			enabled: u.Enabled && !res.Disable,
			skip:    !res.Disable && lockout.Equal(res.Next, u.Security),
		}, nil
	})
	if err != nil {
		return false, err
	}
	if tr.skip {
		return false, nil
	}

	next := tr.result.Next
	g.emit(ctx, telemetrydomain.EventLoginFailed, u.ID, "", map[string]string{
		"invalid_login_attempts": strconv.Itoa(next.InvalidLoginAttempts),
	})
	switch {
	case tr.result.Disable:
		g.emit(ctx, telemetrydomain.EventAccountDisabled, u.ID, "", map[string]string{
			"times_locked": strconv.Itoa(next.NumberOfTimesLocked),
		})
		if g.revokeOnDisable {
			if n, err := g.sessions.DeleteAllForUser(ctx, u.ID); err != nil {
				log.Printf("identity: revoke sessions of disabled user %s: %v", u.ID, err)
			} else if n > 0 {
				g.emit(ctx, telemetrydomain.EventSessionRevoked, u.ID, "", map[string]string{
					"reason": "account_disabled", "count": strconv.Itoa(n),
				})
			}
		}
	case tr.result.Locked:
		g.emit(ctx, telemetrydomain.EventAccountLocked, u.ID, "", map[string]string{
			"times_locked": strconv.Itoa(next.NumberOfTimesLocked),
			"locked_until": next.LockedUntil.UTC().Format(time.RFC3339),
		})
	}
	return tr.result.Disable, nil
}

// Login evaluates one login attempt whose credentials were checked by the caller. A blocked account is refused
// before its credentials are considered. Every refusal wraps ErrUnauthenticated so callers can report it
// without revealing which condition applied; storage and entropy failures are returned unwrapped.
func (g *Gate) Login(ctx context.Context, userID, deviceID string, credentialsValid bool) (*sessiondomain.Session, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	if err := blockedError(u, g.clock.Now()); err != nil {
		return nil, err
	}
	if !credentialsValid {
		if _, err := g.RecordFailedAttempt(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrUnauthenticated
	}
	sess, err := g.IssueSession(ctx, userID, deviceID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	return sess, err
}

// Revoke deletes the session for token. Returns the session if one was live, nil otherwise.
func (g *Gate) Revoke(ctx context.Context, token string) (*sessiondomain.Session, error) {
	sess, err := g.sessions.Delete(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	g.emit(ctx, telemetrydomain.EventSessionRevoked, sess.UserID, sess.DeviceID, map[string]string{"reason": "logout"})
	return sess, nil
}

// RevokeAllForUser deletes every session of userID and returns how many were removed.
func (g *Gate) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := g.sessions.DeleteAllForUser(ctx, userID)
	if err == nil && n > 0 {
		g.emit(ctx, telemetrydomain.EventSessionRevoked, userID, "", map[string]string{"count": strconv.Itoa(n)})
	}
	return n, err
}

// RevokeAllForDevice deletes every session bound to deviceID and returns how many were removed.
func (g *Gate) RevokeAllForDevice(ctx context.Context, deviceID string) (int, error) {
	n, err := g.sessions.DeleteAllForDevice(ctx, deviceID)
	if err == nil && n > 0 {
		g.emit(ctx, telemetrydomain.EventSessionRevoked, "", deviceID, map[string]string{"count": strconv.Itoa(n)})
	}
	return n, err
}

// transition is the outcome of one pass of an updateSecurity loop.
type transition struct {
	result  lockout.Result
	enabled bool
	// skip means the persisted state already equals the result and nothing is written.
	skip bool
}

// updateSecurity runs apply against the latest stored user and writes the result conditional on the version
// it read, retrying on conflict. Returns the user as read by the successful pass.
func (g *Gate) updateSecurity(ctx context.Context, userID string, apply func(*userdomain.User, time.Time) (transition, error)) (*userdomain.User, transition, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, transition{}, err
		}
		u, err := g.users.GetByID(ctx, userID)
		if err != nil {
			return nil, transition{}, err
		}
		if u == nil {
			return nil, transition{}, ErrUserNotFound
		}
		tr, err := apply(u, g.clock.Now())
		if err != nil || tr.skip {
			return u, tr, err
		}
		_, err = g.users.UpdateSecurity(ctx, u.ID, u.Version, tr.result.Next, tr.enabled)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, transition{}, err
		}
		return u, tr, nil
	}
	return nil, transition{}, ErrConflict
}

func blockedError(u *userdomain.User, now time.Time) error {
	if !u.Enabled {
		return ErrAccountDisabled
	}
	if lockout.IsBlocked(u.Security, u.Enabled, now) {
		return ErrAccountLocked
	}
	return nil
}

func (g *Gate) emit(ctx context.Context, typ telemetrydomain.EventType, userID, deviceID string, meta map[string]string) {
	if g.events == nil {
		return
	}
	telemetry.EmitAsync(g.events, ctx, &telemetrydomain.Event{
		Type:      typ,
		Source:    eventSource,
		UserID:    userID,
		DeviceID:  deviceID,
		Metadata:  meta,
		CreatedAt: g.clock.Now(),
	})
}
