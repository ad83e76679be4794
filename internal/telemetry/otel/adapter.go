package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"sessionguard/internal/telemetry"
	"sessionguard/internal/telemetry/domain"
)

const instrumentationName = "sessionguard.security"

// NewEventEmitter returns an EventEmitter that writes each security event as an OTel log record and counts it
// on the sessionguard.security.events counter. A nil LoggerProvider yields a no-op emitter; a nil MeterProvider
// disables counting.
func NewEventEmitter(lp *sdklog.LoggerProvider, mp metric.MeterProvider) (telemetry.EventEmitter, error) {
	if lp == nil {
		return noopEmitter{}, nil
	}
	return NewEventEmitterWithLogger(lp.Logger(instrumentationName), mp)
}

// NewEventEmitterWithLogger is NewEventEmitter for an arbitrary otellog.Logger. Used by tests.
func NewEventEmitterWithLogger(logger otellog.Logger, mp metric.MeterProvider) (telemetry.EventEmitter, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"sessionguard.security.events",
		metric.WithDescription("Security events by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &otelEmitter{logger: logger, events: counter}, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
	events metric.Int64Counter
}

// Emit converts the event to an OTel log record, emits it and bumps the per-type counter.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(severityOf(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	rec.AddAttributes(otellog.String("event_type", string(event.Type)))
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.DeviceID != "" {
		rec.AddAttributes(otellog.String("device_id", event.DeviceID))
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	e.logger.Emit(ctx, rec)
	e.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(event.Type))))
	return nil
}

func severityOf(t domain.EventType) otellog.Severity {
	switch t {
	case domain.EventAccountDisabled, domain.EventAccountLocked:
		return otellog.SeverityWarn
	case domain.EventLoginFailed:
		return otellog.SeverityInfo2
	default:
		return otellog.SeverityInfo
	}
}
