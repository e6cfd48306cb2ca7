package events

import (
	"context"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// NewOTelEmitter returns an Emitter that sends link events as OTel log records
// via the given LoggerProvider. If provider is nil, returns a no-op emitter.
func NewOTelEmitter(provider *sdklog.LoggerProvider) Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("linkbot.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *LinkEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the link event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *LinkEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(event.EventType))
	if event.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", event.EventType))
	}
	if event.RecordID != 0 {
		rec.AddAttributes(otellog.String("record_id", strconv.FormatInt(event.RecordID, 10)))
	}
	if event.TelegramID != 0 {
		rec.AddAttributes(otellog.String("telegram_id", strconv.FormatInt(event.TelegramID, 10)))
	}
	if event.PlayerName != "" {
		rec.AddAttributes(otellog.String("player_name", event.PlayerName))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
