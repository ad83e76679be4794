package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpchealth "google.golang.org/grpc/health"

	"sessionguard/internal/bootstrap"
	"sessionguard/internal/clock"
	"sessionguard/internal/config"
	"sessionguard/internal/health"
	identityhandler "sessionguard/internal/identity/handler"
	"sessionguard/internal/server"
	"sessionguard/internal/telemetry"
	telemetryotel "sessionguard/internal/telemetry/otel"
)

const (
	healthInterval = 15 * time.Second
	healthTimeout  = 3 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	defer stores.Close()

	events, err := bootstrap.NewEvents(cfg, providers.LoggerProvider, providers.MeterProvider)
	if err != nil {
		log.Fatalf("events: %v", err)
	}

	clk := clock.System()
	sessions := bootstrap.NewSessionStore(cfg, stores, clk)
	log.Printf("session backend: %s, lifetime %s", cfg.SessionBackend, sessions.Timeout())
	gate := bootstrap.NewGate(cfg, stores, sessions, clk, events.Emitter)

	healthSrv := grpchealth.NewServer()
	checker := health.NewChecker(healthSrv, healthTimeout, identityhandler.ServiceName)
	for name, ping := range stores.Pingers() {
		checker.Add(name, ping)
	}
	go checker.Run(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	if cfg.LoginUpstreamKey == "" {
		log.Println("LOGIN_UPSTREAM_KEY is not set; AuthService/Login refuses every call")
	}
	s := server.NewServer(server.Deps{
		Gate:        gate,
		Events:      events.Emitter,
		Health:      healthSrv,
		UpstreamKey: cfg.LoginUpstreamKey,
	})

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down gRPC server...")
	healthSrv.Shutdown()
	s.GracefulStop()
	log.Println("gRPC server stopped")

	// Let in-flight EmitAsync calls finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := events.Close(); err != nil {
		log.Printf("kafka producer close: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
}
