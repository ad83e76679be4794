package interceptors

import (
	"context"

	sessiondomain "sessionguard/internal/session/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	tokenKey     = contextKey{"session_token"}
)

// WithPrincipal returns a context carrying the resolved principal and the bearer token it was resolved from.
// Handlers read them via GetUserID, GetDeviceID, GetSessionToken.
func WithPrincipal(ctx context.Context, p sessiondomain.Principal, token string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	ctx = context.WithValue(ctx, tokenKey, token)
	return ctx
}

// PrincipalFrom returns the principal from context and true if the request was authenticated.
func PrincipalFrom(ctx context.Context) (sessiondomain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(sessiondomain.Principal)
	return p, ok
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.UserID == "" {
		return "", false
	}
	return p.UserID, true
}

// GetDeviceID returns the device_id from context and true if set. Sessions in the default slot have none.
func GetDeviceID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.DeviceID == "" {
		return "", false
	}
	return p.DeviceID, true
}

// GetSessionToken returns the bearer token that authenticated the request.
func GetSessionToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenKey).(string)
	return v, ok && v != ""
}
