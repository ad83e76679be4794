package domain

import (
	"testing"
	"time"

	"sessionguard/internal/lockout"
)

func TestUser_Validate(t *testing.T) {
	until := time.Now().Add(time.Minute)
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{ID: "u1", Username: "alice", Enabled: true}, false},
		{"valid locked", User{ID: "u1", Username: "alice", Security: lockout.SecurityState{Locked: true, LockedUntil: &until}}, false},
		{"missing id", User{Username: "alice"}, true},
		{"missing username", User{ID: "u1"}, true},
		{"negative attempts", User{ID: "u1", Username: "alice", Security: lockout.SecurityState{InvalidLoginAttempts: -1}}, true},
		{"locked without expiry", User{ID: "u1", Username: "alice", Security: lockout.SecurityState{Locked: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
