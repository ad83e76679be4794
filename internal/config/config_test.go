package config

import (
	"os"
	"testing"
	"time"
)

// setEnv clears the environment, then sets kv pairs for the duration of the test.
func setEnv(t *testing.T, kv ...string) {
	t.Helper()
	saved := os.Environ()
	os.Clearenv()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range saved {
			for i := 0; i < len(e); i++ {
				if e[i] == '=' {
					os.Setenv(e[:i], e[i+1:])
					break
				}
			}
		}
	})
	for i := 0; i+1 < len(kv); i += 2 {
		os.Setenv(kv[i], kv[i+1])
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/sessionguard")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.SessionBackend != BackendPostgres {
		t.Errorf("SessionBackend = %q, want postgres", cfg.SessionBackend)
	}
	if cfg.SessionTimeout() != 8*time.Hour {
		t.Errorf("SessionTimeout = %v, want 8h", cfg.SessionTimeout())
	}
	if cfg.SweepInterval() != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval())
	}
	lock := cfg.AccountLock()
	if !lock.Enabled || lock.Threshold != 10 || lock.Interval != time.Minute || lock.Max != 5 {
		t.Errorf("AccountLock = %+v", lock)
	}
	if !cfg.RevokeSessionsOnDisable {
		t.Error("RevokeSessionsOnDisable should default to true")
	}
	if cfg.SecurityEventsKafkaTopic != "sessionguard-security-events" {
		t.Errorf("SecurityEventsKafkaTopic = %q", cfg.SecurityEventsKafkaTopic)
	}
	if cfg.ServiceName != "sessionguard" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.RedisKeyPrefix != "sessionguard:" {
		t.Errorf("RedisKeyPrefix = %q", cfg.RedisKeyPrefix)
	}
	if cfg.LoginUpstreamKey != "" {
		t.Errorf("LoginUpstreamKey = %q, want empty (Login disabled)", cfg.LoginUpstreamKey)
	}
	if cfg.KafkaGroupID != "sessionguard-eventsink" || cfg.LokiURL != "" {
		t.Errorf("KafkaGroupID = %q, LokiURL = %q", cfg.KafkaGroupID, cfg.LokiURL)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setEnv(t,
		"GRPC_ADDR", ":9090",
		"SESSION_BACKEND", "Redis",
		"DATABASE_URL", "postgres://db/x",
		"REDIS_ADDR", "cache:6379",
		"REDIS_DB", "3",
		"SESSION_TIMEOUT_SECONDS", "3600",
		"ACCOUNT_LOCK_ENABLED", "true",
		"ACCOUNT_LOCK_THRESHOLD", "3",
		"ACCOUNT_LOCK_INTERVAL", "120",
		"ACCOUNT_LOCK_MAX", "2",
		"REVOKE_SESSIONS_ON_DISABLE", "false",
		"SESSION_SWEEP_INTERVAL", "30s",
	)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.SessionBackend != BackendRedis || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 3 {
		t.Errorf("redis settings = %q %q %d", cfg.SessionBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.SessionTimeout() != time.Hour {
		t.Errorf("SessionTimeout = %v", cfg.SessionTimeout())
	}
	lock := cfg.AccountLock()
	if lock.Threshold != 3 || lock.Interval != 2*time.Minute || lock.Max != 2 {
		t.Errorf("AccountLock = %+v", lock)
	}
	if cfg.RevokeSessionsOnDisable {
		t.Error("RevokeSessionsOnDisable should be false")
	}
	if cfg.SweepInterval() != 30*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  []string
	}{
		{"missing database url", []string{"SESSION_BACKEND", "postgres"}},
		{"unknown backend", []string{"SESSION_BACKEND", "mongo", "DATABASE_URL", "x"}},
		{"zero timeout", []string{"SESSION_BACKEND", "memory", "SESSION_TIMEOUT_SECONDS", "0"}},
		{"negative timeout", []string{"SESSION_BACKEND", "memory", "SESSION_TIMEOUT_SECONDS", "-5"}},
		{"zero threshold", []string{"SESSION_BACKEND", "memory", "ACCOUNT_LOCK_THRESHOLD", "0"}},
		{"zero lock max", []string{"SESSION_BACKEND", "memory", "ACCOUNT_LOCK_MAX", "0"}},
		{"bad sweep interval", []string{"SESSION_BACKEND", "memory", "SESSION_SWEEP_INTERVAL", "soon"}},
		{"memory in production", []string{"SESSION_BACKEND", "memory", "APP_ENV", "production"}},
		{"short upstream key", []string{"SESSION_BACKEND", "memory", "LOGIN_UPSTREAM_KEY", "hunter2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env...)
			if _, err := Load(); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoad_LockDisabledSkipsLockValidation(t *testing.T) {
	setEnv(t, "SESSION_BACKEND", "memory", "ACCOUNT_LOCK_ENABLED", "false", "ACCOUNT_LOCK_THRESHOLD", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccountLock().Enabled {
		t.Error("AccountLock.Enabled should be false")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092 , ,b:9092,", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		got := (&Config{KafkaBrokers: tt.in}).KafkaBrokersList()
		if len(got) != len(tt.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("KafkaBrokersList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should yield nil")
	}
}

func TestSweepInterval_Fallback(t *testing.T) {
	if got := (&Config{SessionSweepInterval: "nope"}).SweepInterval(); got != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", got)
	}
}
