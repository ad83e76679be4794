// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sessionguard/internal/lockout"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// minUpstreamKeyLength rejects short shared keys that could be guessed.
const minUpstreamKeyLength = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Required unless SESSION_BACKEND=memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// SessionBackend selects where session records live: memory, postgres or redis.
	// Users always live in Postgres except with the memory backend.
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	// RedisKeyPrefix namespaces session keys (default "sessionguard:").
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// SessionTimeoutSeconds is the session lifetime applied on create and refresh.
	SessionTimeoutSeconds int `mapstructure:"SESSION_TIMEOUT_SECONDS"`
	// SessionSweepInterval is how often the worker purges expired sessions (e.g. "5m").
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`

	AccountLockEnabled   bool `mapstructure:"ACCOUNT_LOCK_ENABLED"`
	AccountLockThreshold int  `mapstructure:"ACCOUNT_LOCK_THRESHOLD"`
	// AccountLockInterval is the lock duration in seconds.
	AccountLockInterval int `mapstructure:"ACCOUNT_LOCK_INTERVAL"`
	AccountLockMax      int `mapstructure:"ACCOUNT_LOCK_MAX"`
	// RevokeSessionsOnDisable deletes every session of an account when lockout disables it.
	RevokeSessionsOnDisable bool `mapstructure:"REVOKE_SESSIONS_ON_DISABLE"`

	// LoginUpstreamKey is the shared key the trusted upstream sends with AuthService/Login. Empty disables Login.
	LoginUpstreamKey string `mapstructure:"LOGIN_UPSTREAM_KEY"`

	// Security events (optional). When Kafka brokers are set, security events are also published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsKafkaTopic is the Kafka topic for security events (default sessionguard-security-events).
	SecurityEventsKafkaTopic string `mapstructure:"SECURITY_EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the event sink (default sessionguard-eventsink).
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the event sink pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OpenTelemetry collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SESSION_BACKEND", BackendPostgres)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "sessionguard:")
	v.SetDefault("SESSION_TIMEOUT_SECONDS", 28800)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "5m")
	v.SetDefault("ACCOUNT_LOCK_ENABLED", true)
	v.SetDefault("ACCOUNT_LOCK_THRESHOLD", 10)
	v.SetDefault("ACCOUNT_LOCK_INTERVAL", 60)
	v.SetDefault("ACCOUNT_LOCK_MAX", 5)
	v.SetDefault("REVOKE_SESSIONS_ON_DISABLE", true)
	v.SetDefault("LOGIN_UPSTREAM_KEY", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_KAFKA_TOPIC", "sessionguard-security-events")
	v.SetDefault("KAFKA_GROUP_ID", "sessionguard-eventsink")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "sessionguard")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	c.SessionBackend = strings.ToLower(strings.TrimSpace(c.SessionBackend))
	switch c.SessionBackend {
	case BackendMemory:
		if c.Env == "production" {
			return errors.New("config: SESSION_BACKEND=memory must not be used when APP_ENV=production")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for SESSION_BACKEND=postgres")
		}
	case BackendRedis:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set for SESSION_BACKEND=redis (users live in Postgres)")
		}
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR must be set for SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.SessionBackend)
	}
	if c.LoginUpstreamKey != "" && len(c.LoginUpstreamKey) < minUpstreamKeyLength {
		return fmt.Errorf("config: LOGIN_UPSTREAM_KEY must be at least %d characters", minUpstreamKeyLength)
	}
	if c.SessionTimeoutSeconds <= 0 {
		return errors.New("config: SESSION_TIMEOUT_SECONDS must be greater than 0")
	}
	if d, err := time.ParseDuration(c.SessionSweepInterval); err != nil || d <= 0 {
		return fmt.Errorf("config: SESSION_SWEEP_INTERVAL %q is not a positive duration", c.SessionSweepInterval)
	}
	if err := c.AccountLock().Validate(); err != nil {
		return fmt.Errorf("config: ACCOUNT_LOCK_*: %w", err)
	}
	return nil
}

// SessionTimeout returns the session lifetime.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// SweepInterval parses SessionSweepInterval. Returns 5m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SessionSweepInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// AccountLock returns the lockout policy configuration.
func (c *Config) AccountLock() lockout.Config {
	return lockout.Config{
		Enabled:   c.AccountLockEnabled,
		Threshold: c.AccountLockThreshold,
		Interval:  time.Duration(c.AccountLockInterval) * time.Second,
		Max:       c.AccountLockMax,
	}
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
