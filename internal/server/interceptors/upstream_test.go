package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestUpstreamKeyUnary(t *testing.T) {
	const login = "/sessionguard.v1.AuthService/Login"
	methods := map[string]bool{login: true}
	withKey := func(k string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(UpstreamKeyHeader, k))
	}
	tests := []struct {
		name     string
		key      string
		ctx      context.Context
		method   string
		wantCode codes.Code
	}{
		{"matching key", "s3cret", withKey("s3cret"), login, codes.OK},
		{"no metadata", "s3cret", context.Background(), login, codes.Unauthenticated},
		{"wrong key", "s3cret", withKey("guess"), login, codes.Unauthenticated},
		{"prefix of key", "s3cret", withKey("s3c"), login, codes.Unauthenticated},
		{"unset key refuses everyone", "", withKey(""), login, codes.Unauthenticated},
		{"other method passes", "s3cret", context.Background(), "/sessionguard.v1.AuthService/WhoAmI", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				called = true
				return "ok", nil
			}
			_, err := UpstreamKeyUnary(tt.key, methods)(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if status.Code(err) != tt.wantCode {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.wantCode)
			}
			if called != (tt.wantCode == codes.OK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}
