// Package storage holds the error kinds shared by every repository backend.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned by a conditional write whose precondition (e.g. row version) no longer holds.
	ErrConflict = errors.New("storage: concurrent update conflict")
	// ErrUnavailable marks failures of the backing store itself. Callers must not treat it as an authentication failure.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds. Returns nil if err is nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
