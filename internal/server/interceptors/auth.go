package interceptors

import (
	"context"
	"errors"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identityservice "sessionguard/internal/identity/service"
	sessiondomain "sessionguard/internal/session/domain"
)

const bearerPrefix = "bearer "

// TokenResolver maps a bearer token to the principal of its live session.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (sessiondomain.Principal, error)
}

// AuthUnary returns a unary server interceptor that resolves the Bearer token from gRPC metadata and puts the
// principal in context for protected RPCs. publicMethods is the set of full method names that do not require
// a Bearer token (e.g. AuthService Login, grpc.health.v1 Check).
//
// A token that does not resolve is Unauthenticated with a fixed message. A storage failure while resolving is
// Unavailable so clients can tell "cannot verify" from "not authenticated".
func AuthUnary(resolver TokenResolver, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		p, err := resolver.Resolve(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			if errors.Is(err, identityservice.ErrUnauthenticated) {
				return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
			}
			log.Printf("interceptors: resolve session: %v", err)
			return nil, status.Error(codes.Unavailable, "session store unavailable")
		}

		return handler(WithPrincipal(ctx, p, token), req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
