package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"
)

// AuthServiceClient calls sessionguard.v1.AuthService. Login requires the upstream key in the x-upstream-key
// metadata; the other methods require a Bearer session token.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient returns a client over cc.
func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, LoginMethod, in.toProto(), opts)
}

func (c *AuthServiceClient) WhoAmI(ctx context.Context, in *WhoAmIRequest, opts ...grpc.CallOption) (*WhoAmIResponse, error) {
	return invoke[WhoAmIResponse](ctx, c.cc, WhoAmIMethod, in.toProto(), opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, LogoutMethod, in.toProto(), opts)
}

func (c *AuthServiceClient) RevokeAll(ctx context.Context, in *RevokeAllRequest, opts ...grpc.CallOption) (*RevokeAllResponse, error) {
	return invoke[RevokeAllResponse](ctx, c.cc, RevokeAllMethod, in.toProto(), opts)
}

func invoke[Resp any, PResp wireMessage[Resp]](ctx context.Context, cc grpc.ClientConnInterface, method string, in *dynamicpb.Message, opts []grpc.CallOption) (*Resp, error) {
	out := PResp(new(Resp))
	wire := dynamicpb.NewMessage(out.protoDescriptor())
	if err := cc.Invoke(ctx, method, in, wire, opts...); err != nil {
		return nil, err
	}
	out.fromProto(wire)
	return (*Resp)(out), nil
}
