package interceptors

import (
	"context"
	"testing"

	sessiondomain "sessionguard/internal/session/domain"
)

func TestWithPrincipal_SetsAllValues(t *testing.T) {
	ctx := WithPrincipal(context.Background(), sessiondomain.Principal{UserID: "user-1", DeviceID: "dev-1"}, "tok")

	if v, ok := GetUserID(ctx); !ok || v != "user-1" {
		t.Errorf("GetUserID = %q, %v", v, ok)
	}
	if v, ok := GetDeviceID(ctx); !ok || v != "dev-1" {
		t.Errorf("GetDeviceID = %q, %v", v, ok)
	}
	if v, ok := GetSessionToken(ctx); !ok || v != "tok" {
		t.Errorf("GetSessionToken = %q, %v", v, ok)
	}
}

func TestGetters_NotSet(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID should be false on empty context")
	}
	if _, ok := GetDeviceID(ctx); ok {
		t.Error("GetDeviceID should be false on empty context")
	}
	if _, ok := GetSessionToken(ctx); ok {
		t.Error("GetSessionToken should be false on empty context")
	}
	if _, ok := PrincipalFrom(ctx); ok {
		t.Error("PrincipalFrom should be false on empty context")
	}
}

func TestGetDeviceID_DefaultSlot(t *testing.T) {
	ctx := WithPrincipal(context.Background(), sessiondomain.Principal{UserID: "user-1"}, "tok")
	if _, ok := GetDeviceID(ctx); ok {
		t.Error("default-slot session should have no device id")
	}
	if p, ok := PrincipalFrom(ctx); !ok || p.UserID != "user-1" {
		t.Errorf("PrincipalFrom = %+v, %v", p, ok)
	}
}

func TestContext_Isolation(t *testing.T) {
	parent := context.Background()
	child := WithPrincipal(parent, sessiondomain.Principal{UserID: "user-1"}, "tok")
	if _, ok := GetUserID(parent); ok {
		t.Error("parent context should not carry the principal")
	}
	if _, ok := GetUserID(child); !ok {
		t.Error("child context should carry the principal")
	}
}
