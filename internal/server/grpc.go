// Package server assembles the gRPC server: interceptors, instrumentation and service registration.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	identityhandler "sessionguard/internal/identity/handler"
	"sessionguard/internal/server/interceptors"
	"sessionguard/internal/telemetry"
)

// Deps holds the dependencies of the gRPC services.
type Deps struct {
	// Gate backs AuthService and the bearer-token interceptor. If nil, AuthService RPCs return Unimplemented
	// and every protected RPC is Unauthenticated.
	Gate GateAPI
	// Events receives auth_rejected events from the telemetry interceptor. Optional.
	Events telemetry.EventEmitter
	// Health is the grpc.health.v1 server. If nil, one is created and always reports SERVING.
	Health *grpchealth.Server
	// UpstreamKey must accompany every UpstreamMethods call in the x-upstream-key metadata. Empty refuses them all.
	UpstreamKey string
}

// GateAPI is what the server needs from the authentication gate.
type GateAPI interface {
	identityhandler.Gate
	interceptors.TokenResolver
}

// PublicMethods are the full method names callable without a Bearer token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		identityhandler.LoginMethod:          true,
		healthpb.Health_Check_FullMethodName: true,
	}
}

// UpstreamMethods are the full method names only the trusted upstream may call. Login takes the outcome of a
// password check on trust, so it is gated by the upstream key instead of a Bearer token.
func UpstreamMethods() map[string]bool {
	return map[string]bool{identityhandler.LoginMethod: true}
}

// NewServer returns a gRPC server with the telemetry, upstream-key and auth interceptors, otelgrpc instrumentation and
// every service registered. opts are appended (e.g. credentials).
func NewServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	var resolver interceptors.TokenResolver = rejectAll{}
	if deps.Gate != nil {
		resolver = deps.Gate
	}
	skip := map[string]bool{healthpb.Health_Check_FullMethodName: true}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(deps.Events, skip),
			interceptors.UpstreamKeyUnary(deps.UpstreamKey, UpstreamMethods()),
			interceptors.AuthUnary(resolver, PublicMethods()),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers AuthService and grpc.health.v1 with the given registrar.
//
// Service → handler mapping:
//   - sessionguard.v1.AuthService → internal/identity/handler
//   - grpc.health.v1.Health       → google.golang.org/grpc/health (status driven by internal/health)
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	var gate identityhandler.Gate
	if deps.Gate != nil {
		gate = deps.Gate
	}
	identityhandler.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(gate))
	hs := deps.Health
	if hs == nil {
		hs = grpchealth.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
}
