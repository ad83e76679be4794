// Package producer defines the interface for publishing security events to a message broker (e.g. Kafka).
package producer

import (
	"context"

	"sessionguard/internal/telemetry/domain"
)

// Producer publishes security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
