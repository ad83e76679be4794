package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"sessionguard/internal/clock"
	identityhandler "sessionguard/internal/identity/handler"
	identityservice "sessionguard/internal/identity/service"
	"sessionguard/internal/lockout"
	"sessionguard/internal/security"
	"sessionguard/internal/server/interceptors"
	sessionrepo "sessionguard/internal/session/repository"
	sessionservice "sessionguard/internal/session/service"
	userdomain "sessionguard/internal/user/domain"
	userrepo "sessionguard/internal/user/repository"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices_NilDependencies(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{})
	want := []string{identityhandler.ServiceName, "grpc.health.v1.Health"}
	if len(reg.services) != len(want) {
		t.Fatalf("registered %v, want %v", reg.services, want)
	}
	for i := range want {
		if reg.services[i] != want[i] {
			t.Errorf("service[%d] = %q, want %q", i, reg.services[i], want[i])
		}
	}
}

func TestUpstreamMethods(t *testing.T) {
	um := UpstreamMethods()
	if len(um) != 1 || !um[identityhandler.LoginMethod] {
		t.Errorf("UpstreamMethods = %v, want only Login", um)
	}
}

func TestPublicMethods(t *testing.T) {
	pm := PublicMethods()
	if !pm[identityhandler.LoginMethod] || !pm[healthpb.Health_Check_FullMethodName] {
		t.Errorf("PublicMethods = %v", pm)
	}
	if pm[identityhandler.LogoutMethod] || pm[identityhandler.WhoAmIMethod] {
		t.Error("protected methods listed as public")
	}
}

func startServer(t *testing.T, deps Deps) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewServer(deps)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

const testUpstreamKey = "0123456789abcdef0123456789abcdef"

func withBearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func fromUpstream(key string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), interceptors.UpstreamKeyHeader, key)
}

func newTestGate(t *testing.T) *identityservice.Gate {
	t.Helper()
	users := userrepo.NewMemoryRepository()
	if err := users.Create(context.Background(), &userdomain.User{ID: "u1", Username: "alice", Enabled: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := sessionservice.NewStore(sessionrepo.NewMemoryRepository(), security.NewTokenGenerator(), clock.System(), time.Hour)
	return identityservice.NewGate(users, store, lockout.Config{Enabled: true, Threshold: 3, Interval: time.Minute, Max: 3}, clock.System())
}

func TestServer_LoginWhoAmILogout(t *testing.T) {
	client := identityhandler.NewAuthServiceClient(startServer(t, Deps{Gate: newTestGate(t), UpstreamKey: testUpstreamKey}))
	upstream := fromUpstream(testUpstreamKey)

	_, err := client.Login(upstream, &identityhandler.LoginRequest{UserID: "u1", CredentialsValid: false})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("bad login code = %v, want Unauthenticated", status.Code(err))
	}

	login, err := client.Login(upstream, &identityhandler.LoginRequest{UserID: "u1", DeviceID: "laptop", CredentialsValid: true})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !security.WellFormedToken(login.Token) {
		t.Fatalf("token %q is not well formed", login.Token)
	}
	if login.ExpiresAt.Before(time.Now().Add(59 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about an hour from now", login.ExpiresAt)
	}

	who, err := client.WhoAmI(withBearer(login.Token), &identityhandler.WhoAmIRequest{})
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if who.UserID != "u1" || who.DeviceID != "laptop" {
		t.Errorf("WhoAmI = %+v", who)
	}

	n, err := client.RevokeAll(withBearer(login.Token), &identityhandler.RevokeAllRequest{Scope: identityhandler.RevokeScopeDevice})
	if err != nil || n.Count != 1 {
		t.Fatalf("RevokeAll = %+v, %v; want 1", n, err)
	}

	login, err = client.Login(upstream, &identityhandler.LoginRequest{UserID: "u1", CredentialsValid: true})
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	out, err := client.Logout(withBearer(login.Token), &identityhandler.LogoutRequest{})
	if err != nil || !out.Revoked {
		t.Fatalf("Logout = %+v, %v", out, err)
	}

	_, err = client.WhoAmI(withBearer(login.Token), &identityhandler.WhoAmIRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("WhoAmI after logout code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestServer_LoginRequiresUpstreamKey(t *testing.T) {
	req := &identityhandler.LoginRequest{UserID: "u1", CredentialsValid: true}
	tests := []struct {
		name      string
		serverKey string
		ctx       context.Context
	}{
		{"no key", testUpstreamKey, context.Background()},
		{"wrong key", testUpstreamKey, fromUpstream("not-the-upstream-key-not-the-key")},
		{"session token instead of key", testUpstreamKey, withBearer("0000000000000000000000000000000000000000000000000000000000000000")},
		{"server without key", "", fromUpstream("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := identityhandler.NewAuthServiceClient(startServer(t, Deps{Gate: newTestGate(t), UpstreamKey: tt.serverKey}))
			resp, err := client.Login(tt.ctx, req)
			if status.Code(err) != codes.Unauthenticated || resp != nil {
				t.Fatalf("Login = %+v, %v; want Unauthenticated", resp, err)
			}
		})
	}
}

func TestServer_ProtectedWithoutGate(t *testing.T) {
	client := identityhandler.NewAuthServiceClient(startServer(t, Deps{}))
	_, err := client.WhoAmI(withBearer("anything"), &identityhandler.WhoAmIRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	conn := startServer(t, Deps{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}
}
