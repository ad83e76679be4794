// Worker periodically deletes expired sessions from the configured backend.
// Set SESSION_BACKEND, DATABASE_URL and SESSION_SWEEP_INTERVAL. With the redis backend key TTLs already expire
// sessions and each sweep is a no-op.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sessionguard/internal/bootstrap"
	"sessionguard/internal/clock"
	"sessionguard/internal/config"
	sessionservice "sessionguard/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SessionBackend == config.BackendMemory {
		log.Fatal("worker: SESSION_BACKEND=memory has nothing to sweep from a separate process")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer stores.Close()

	store := bootstrap.NewSessionStore(cfg, stores, clock.System())
	log.Printf("worker: sweeping expired %s sessions every %s", cfg.SessionBackend, cfg.SweepInterval())
	sessionservice.Sweep(ctx, store, cfg.SweepInterval())
	log.Println("worker: stopped")
}
