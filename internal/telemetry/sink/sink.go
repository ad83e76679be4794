// Package sink forwards security events from Kafka to a log store.
package sink

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const pushTimeout = 10 * time.Second

// MessageReader is the part of *kafka.Reader the sink uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Pusher stores one raw event. Implemented by *loki.Client.
type Pusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// Run reads messages until ctx is done. Read and push failures are logged and skipped; a message whose push
// fails is not retried.
func Run(ctx context.Context, r MessageReader, p Pusher) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("sink: kafka read error: %v", err)
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEventJSON(pushCtx, msg.Value); err != nil {
			log.Printf("sink: push failed (offset %d): %v", msg.Offset, err)
		}
		cancel()
	}
}

// NewReader returns a consumer-group reader for the security events topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}
