package domain

import (
	"errors"
	"time"

	"sessionguard/internal/lockout"
)

// User is the account aggregate. It exclusively owns its embedded lockout state.
type User struct {
	ID       string
	Username string
	// Enabled gates every login. Once the lockout engine clears it only an administrator can set it again.
	Enabled  bool
	Security lockout.SecurityState
	// Version increases on every write; conditional updates compare against it.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Security.InvalidLoginAttempts < 0 || u.Security.NumberOfTimesLocked < 0 {
		return errors.New("security counters must not be negative")
	}
	if u.Security.Locked && u.Security.LockedUntil == nil {
		return errors.New("locked account must have a lock expiry")
	}
	return nil
}
