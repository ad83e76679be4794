// eventsink consumes security events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, SECURITY_EVENTS_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL. SESSION_BACKEND=memory avoids
// the database requirement of config validation; the sink does not touch sessions.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sessionguard/internal/config"
	"sessionguard/internal/telemetry/loki"
	"sessionguard/internal/telemetry/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("eventsink: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("eventsink: LOKI_URL is required")
	}

	reader := sink.NewReader(brokers, cfg.SecurityEventsKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("eventsink: consuming from %s (group %s), pushing to %s", cfg.SecurityEventsKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
	sink.Run(ctx, reader, loki.NewClient(cfg.LokiURL, cfg.ServiceName, nil))
	log.Println("eventsink: stopped")
}
