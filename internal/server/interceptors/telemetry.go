package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sessionguard/internal/telemetry"
	"sessionguard/internal/telemetry/domain"
)

// TelemetryUnary returns a unary server interceptor that emits an auth_rejected security event for every RPC
// answered with Unauthenticated. Best-effort: emission is asynchronous and never fails the RPC. If emitter is
// nil, the interceptor no-ops. skipMethods is the set of full method names to not report.
//
// It must run outside AuthUnary so it observes the interceptor's own rejections.
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] || status.Code(err) != codes.Unauthenticated {
			return resp, err
		}
		telemetry.EmitAsync(emitter, ctx, &domain.Event{
			Type:   domain.EventAuthRejected,
			Source: "grpc_interceptor",
			Metadata: map[string]string{
				"full_method": info.FullMethod,
				"client_ip":   ClientIP(ctx),
				"duration":    time.Since(start).Round(time.Millisecond).String(),
			},
			CreatedAt: time.Now().UTC(),
		})
		return resp, err
	}
}
