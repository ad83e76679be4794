// Package bootstrap builds the stores, gate and event pipeline described by a Config. It is shared by the
// server, worker and seed commands.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/metric"

	"sessionguard/internal/clock"
	"sessionguard/internal/config"
	"sessionguard/internal/db"
	"sessionguard/internal/health"
	identityservice "sessionguard/internal/identity/service"
	"sessionguard/internal/security"
	sessionrepo "sessionguard/internal/session/repository"
	sessionservice "sessionguard/internal/session/service"
	"sessionguard/internal/telemetry"
	telemetryotel "sessionguard/internal/telemetry/otel"
	"sessionguard/internal/telemetry/producer"
	userrepo "sessionguard/internal/user/repository"
)

// Stores holds the repositories for the configured backend and the connections behind them.
type Stores struct {
	Users    userrepo.Repository
	Sessions sessionrepo.Repository
	// DB is nil for the memory backend.
	DB *sql.DB
	// Redis is nil unless SESSION_BACKEND=redis.
	Redis redis.UniversalClient
}

// OpenStores connects to the backends selected by cfg.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.SessionBackend == config.BackendMemory {
		return &Stores{
			Users:    userrepo.NewMemoryRepository(),
			Sessions: sessionrepo.NewMemoryRepository(),
		}, nil
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	st := &Stores{
		Users: userrepo.NewPostgresRepository(conn),
		DB:    conn,
	}
	switch cfg.SessionBackend {
	case config.BackendPostgres:
		st.Sessions = sessionrepo.NewPostgresRepository(conn)
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.Redis = client
		st.Sessions = sessionrepo.NewRedisRepository(client, cfg.RedisKeyPrefix)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
	return st, nil
}

// Pingers returns one health check per open connection.
func (s *Stores) Pingers() map[string]health.PingFunc {
	out := make(map[string]health.PingFunc)
	if s.DB != nil {
		out["postgres"] = s.DB.PingContext
	}
	if s.Redis != nil {
		client := s.Redis
		out["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return out
}

// Close closes every open connection.
func (s *Stores) Close() error {
	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}

// NewSessionStore returns the session store over st with the configured lifetime.
func NewSessionStore(cfg *config.Config, st *Stores, clk clock.Clock) *sessionservice.Store {
	return sessionservice.NewStore(st.Sessions, security.NewTokenGenerator(), clk, cfg.SessionTimeout())
}

// NewGate returns the authentication gate over st. events may be nil.
func NewGate(cfg *config.Config, st *Stores, sessions *sessionservice.Store, clk clock.Clock, events telemetry.EventEmitter) *identityservice.Gate {
	return identityservice.NewGate(st.Users, sessions, cfg.AccountLock(), clk,
		identityservice.WithEventEmitter(events),
		identityservice.WithRevokeOnDisable(cfg.RevokeSessionsOnDisable),
	)
}

// Events is the security event pipeline: OTel logs and metrics, plus Kafka when brokers are configured.
type Events struct {
	Emitter telemetry.EventEmitter
	kafka   *producer.KafkaProducer
}

// NewEvents builds the event pipeline. lp and mp may be nil.
func NewEvents(cfg *config.Config, lp *sdklog.LoggerProvider, mp metric.MeterProvider) (*Events, error) {
	otelEmitter, err := telemetryotel.NewEventEmitter(lp, mp)
	if err != nil {
		return nil, fmt.Errorf("otel event emitter: %w", err)
	}
	ev := &Events{}
	emitters := telemetry.MultiEmitter{otelEmitter}
	kp, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsKafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if kp != nil {
		log.Printf("bootstrap: publishing security events to kafka topic %s", kp.Topic())
		ev.kafka = kp
		emitters = append(emitters, kp)
	}
	ev.Emitter = emitters
	return ev, nil
}

// Close flushes and closes the Kafka producer, if any.
func (e *Events) Close() error {
	if e == nil {
		return nil
	}
	return e.kafka.Close()
}
