package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"sessionguard/internal/security"
)

// UpstreamKeyHeader carries the shared key of the trusted upstream that verified the caller's password.
const UpstreamKeyHeader = "x-upstream-key"

// UpstreamKeyUnary returns a unary server interceptor that admits calls to the given methods only when the
// UpstreamKeyHeader metadata equals key. With an empty key those methods are always refused.
func UpstreamKeyUnary(key string, methods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !methods[info.FullMethod] {
			return handler(ctx, req)
		}
		if key == "" || !security.TokenEqual(upstreamKey(ctx), key) {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid upstream key")
		}
		return handler(ctx, req)
	}
}

func upstreamKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(UpstreamKeyHeader)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
