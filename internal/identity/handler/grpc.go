// Package handler exposes the authentication gate as the sessionguard.v1.AuthService gRPC service.
package handler

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	identityservice "sessionguard/internal/identity/service"
	"sessionguard/internal/platform/storage"
	"sessionguard/internal/security"
	"sessionguard/internal/server/interceptors"
	sessiondomain "sessionguard/internal/session/domain"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sessionguard.v1.AuthService"

// Full method names, used for the public-method set of the auth interceptor.
const (
	LoginMethod     = "/" + ServiceName + "/Login"
	WhoAmIMethod    = "/" + ServiceName + "/WhoAmI"
	LogoutMethod    = "/" + ServiceName + "/Logout"
	RevokeAllMethod = "/" + ServiceName + "/RevokeAll"
)

// Gate is the subset of the authentication gate the handler calls.
type Gate interface {
	Login(ctx context.Context, userID, deviceID string, credentialsValid bool) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, token string) (*sessiondomain.Session, error)
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
	RevokeAllForDevice(ctx context.Context, deviceID string) (int, error)
}

// AuthServiceServer is the server API for sessionguard.v1.AuthService.
type AuthServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	WhoAmI(context.Context, *WhoAmIRequest) (*WhoAmIResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	RevokeAll(context.Context, *RevokeAllRequest) (*RevokeAllResponse, error)
}

// AuthServer implements AuthServiceServer on top of the gate. Login is meant for a trusted upstream that has
// already verified the password; every other method requires a Bearer session token.
type AuthServer struct {
	gate Gate
}

// NewAuthServer returns a new Auth gRPC server.
func NewAuthServer(gate Gate) *AuthServer {
	return &AuthServer{gate: gate}
}

// Login evaluates one login attempt and returns a session token on success.
func (s *AuthServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if s.gate == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	sess, err := s.gate.Login(ctx, req.UserID, req.DeviceID, req.CredentialsValid)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{
		Token:     sess.Token,
		UserID:    sess.UserID,
		DeviceID:  sess.DeviceID,
		ExpiresAt: sess.ExpirationDate,
	}, nil
}

// WhoAmI returns the principal of the calling session.
func (s *AuthServer) WhoAmI(ctx context.Context, req *WhoAmIRequest) (*WhoAmIResponse, error) {
	p, ok := interceptors.PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	return &WhoAmIResponse{UserID: p.UserID, DeviceID: p.DeviceID}, nil
}

// Logout revokes the calling session.
func (s *AuthServer) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	if s.gate == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	token, ok := interceptors.GetSessionToken(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	sess, err := s.gate.Revoke(ctx, token)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LogoutResponse{Revoked: sess != nil}, nil
}

// RevokeAll revokes every session of the calling user, or every session bound to the calling device.
func (s *AuthServer) RevokeAll(ctx context.Context, req *RevokeAllRequest) (*RevokeAllResponse, error) {
	if s.gate == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeAll not implemented")
	}
	p, ok := interceptors.PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	var (
		n   int
		err error
	)
	switch req.Scope {
	case RevokeScopeUser, "":
		n, err = s.gate.RevokeAllForUser(ctx, p.UserID)
	case RevokeScopeDevice:
		if p.DeviceID == "" {
			return nil, status.Error(codes.FailedPrecondition, "session is not bound to a device")
		}
		n, err = s.gate.RevokeAllForDevice(ctx, p.DeviceID)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown scope %q", req.Scope)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &RevokeAllResponse{Count: n}, nil
}

// toStatus maps gate errors to gRPC status. Every authentication refusal gets the same code and message.
func toStatus(err error) error {
	switch {
	case errors.Is(err, identityservice.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "authentication failed")
	case errors.Is(err, identityservice.ErrConflict):
		return status.Error(codes.Aborted, "concurrent update, retry")
	case errors.Is(err, storage.ErrUnavailable):
		log.Printf("identity: storage: %v", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	case errors.Is(err, security.ErrEntropySourceUnavailable):
		log.Printf("identity: %v", err)
		return status.Error(codes.Internal, "cannot issue session")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		log.Printf("identity: %v", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// AuthServiceDesc describes sessionguard.v1.AuthService for grpc.ServiceRegistrar.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: unaryHandler(LoginMethod, AuthServiceServer.Login)},
		{MethodName: "WhoAmI", Handler: unaryHandler(WhoAmIMethod, AuthServiceServer.WhoAmI)},
		{MethodName: "Logout", Handler: unaryHandler(LogoutMethod, AuthServiceServer.Logout)},
		{MethodName: "RevokeAll", Handler: unaryHandler(RevokeAllMethod, AuthServiceServer.RevokeAll)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sessionguard/v1/auth.proto",
}

// RegisterAuthServiceServer registers srv with s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unaryHandler decodes the protobuf request into its Go message, runs call through the interceptor chain and
// encodes the Go response back to protobuf.
func unaryHandler[Req, Resp any, PReq wireMessage[Req], PResp wireMessage[Resp]](fullMethod string, call func(AuthServiceServer, context.Context, PReq) (PResp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PReq(new(Req))
		wire := dynamicpb.NewMessage(in.protoDescriptor())
		if err := dec(wire); err != nil {
			return nil, err
		}
		in.fromProto(wire)
		run := func(ctx context.Context, req interface{}) (interface{}, error) {
			out, err := call(srv.(AuthServiceServer), ctx, req.(PReq))
			if err != nil {
				return nil, err
			}
			return out.toProto(), nil
		}
		if interceptor == nil {
			return run(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, run)
	}
}
