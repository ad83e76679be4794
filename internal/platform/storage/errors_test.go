package storage

import (
	"errors"
	"testing"
)

func TestUnavailable_Nil(t *testing.T) {
	if err := Unavailable("op", nil); err != nil {
		t.Errorf("Unavailable(nil) = %v, want nil", err)
	}
}

func TestUnavailable_WrapsBoth(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("sessions.read", cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is(err, ErrUnavailable) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("unavailable error must not match ErrConflict")
	}
}
