// Package lockout decides how login outcomes change an account's security state.
// Every function here is pure: persistence and clocks belong to the caller.
package lockout

import (
	"errors"
	"time"
)

// Config controls progressive lockout. Interval is the lock duration.
type Config struct {
	Enabled   bool
	Threshold int
	Interval  time.Duration
	Max       int
}

// Validate returns an error if an enabled config has a non-positive threshold, interval, or max.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Threshold <= 0 {
		return errors.New("lockout: threshold must be greater than 0")
	}
	if c.Interval <= 0 {
		return errors.New("lockout: interval must be greater than 0")
	}
	if c.Max <= 0 {
		return errors.New("lockout: max must be greater than 0")
	}
	return nil
}

// SecurityState is the lockout bookkeeping embedded in a user account.
type SecurityState struct {
	InvalidLoginAttempts int
	Locked               bool
	// LockedUntil is meaningful only while Locked is true.
	LockedUntil         *time.Time
	NumberOfTimesLocked int
}

// State is the logical lockout state derived from SecurityState and the account's enabled flag.
type State int

const (
	StateClear State = iota
	StateAccumulating
	StateLocked
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateAccumulating:
		return "accumulating"
	case StateLocked:
		return "locked"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a transition.
type Result struct {
	Next SecurityState
	// Disable is true when the account must be disabled. It is set at most once per account lifetime.
	Disable bool
	// Locked is true when this transition applied a new temporary lock.
	Locked bool
}

// StateOf classifies the account at now. An elapsed lock is not Locked.
func StateOf(s SecurityState, enabled bool, now time.Time) State {
	if !enabled {
		return StateDisabled
	}
	if lockActive(s, now) {
		return StateLocked
	}
	if s.InvalidLoginAttempts > 0 {
		return StateAccumulating
	}
	return StateClear
}

// IsBlocked reports whether a login must be refused at now.
func IsBlocked(s SecurityState, enabled bool, now time.Time) bool {
	return !enabled || lockActive(s, now)
}

// Normalize clears a lock whose LockedUntil has passed. InvalidLoginAttempts is left as is:
// only a successful login resets it.
func Normalize(s SecurityState, now time.Time) SecurityState {
	if s.Locked && !lockActive(s, now) {
		s.Locked = false
		s.LockedUntil = nil
	}
	return s
}

// RecordFailure applies a failed login attempt. It is a no-op for a disabled account and while a lock is active:
// a lock ends only by elapsing, never by further failures. An elapsed lock is cleared before counting.
func RecordFailure(s SecurityState, enabled bool, cfg Config, now time.Time) Result {
	if !cfg.Enabled {
		return Result{Next: s}
	}
	switch StateOf(s, enabled, now) {
	case StateDisabled, StateLocked:
		return Result{Next: s}
	}
	next := Normalize(s, now)
	next.InvalidLoginAttempts++
	if next.InvalidLoginAttempts < cfg.Threshold {
		return Result{Next: next}
	}

	next.NumberOfTimesLocked++
	if next.NumberOfTimesLocked >= cfg.Max {
		// The disabled flag is the durable record; counters go back to their cleared values.
		return Result{
			Next:    SecurityState{NumberOfTimesLocked: next.NumberOfTimesLocked},
			Disable: true,
		}
	}
	until := now.Add(cfg.Interval)
	next.Locked = true
	next.LockedUntil = &until
	// The lock cycle is tracked by NumberOfTimesLocked; the next cycle needs Threshold fresh failures.
	next.InvalidLoginAttempts = 0
	return Result{Next: next, Locked: true}
}

// RecordSuccess applies a successful login. NumberOfTimesLocked survives.
func RecordSuccess(s SecurityState) SecurityState {
	return SecurityState{NumberOfTimesLocked: s.NumberOfTimesLocked}
}

// Equal reports whether two states hold the same values.
func Equal(a, b SecurityState) bool {
	if a.InvalidLoginAttempts != b.InvalidLoginAttempts || a.Locked != b.Locked || a.NumberOfTimesLocked != b.NumberOfTimesLocked {
		return false
	}
	if a.LockedUntil == nil || b.LockedUntil == nil {
		return a.LockedUntil == nil && b.LockedUntil == nil
	}
	return a.LockedUntil.Equal(*b.LockedUntil)
}

func lockActive(s SecurityState, now time.Time) bool {
	return s.Locked && s.LockedUntil != nil && s.LockedUntil.After(now)
}
