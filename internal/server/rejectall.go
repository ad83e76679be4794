package server

import (
	"context"

	identityservice "sessionguard/internal/identity/service"
	sessiondomain "sessionguard/internal/session/domain"
)

// rejectAll resolves no token. Used when the server runs without a gate.
type rejectAll struct{}

func (rejectAll) Resolve(context.Context, string) (sessiondomain.Principal, error) {
	return sessiondomain.Principal{}, identityservice.ErrUnauthenticated
}
