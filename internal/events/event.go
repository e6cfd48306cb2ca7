// Package events emits link lifecycle events (code issued, account bound,
// code expired, account unlinked, password recovered) to Kafka or OTel logs.
// Emission is best-effort everywhere: callers log and ignore errors.
package events

import (
	"context"
	"time"
)

// Event types produced by the monitor, sweeper, and link service.
const (
	TypeCodeIssued        = "code_issued"
	TypeAccountBound      = "account_bound"
	TypeCodeExpired       = "code_expired"
	TypeAccountUnlinked   = "account_unlinked"
	TypePasswordRecovered = "password_recovered"
)

// LinkEvent is one link lifecycle event. JSON field names are part of the
// Kafka wire format; the worker's Loki push extracts eventType, source, and
// createdAt for stream labels and the timestamp.
type LinkEvent struct {
	EventType  string    `json:"eventType"`
	RecordID   int64     `json:"recordId,omitempty"`
	TelegramID int64     `json:"telegramId,omitempty"`
	PlayerName string    `json:"playerName,omitempty"`
	Source     string    `json:"source"` // emitting component: monitor, sweeper, bot
	CreatedAt  time.Time `json:"createdAt"`
}

// Emitter emits link events. Callers use it best-effort: log and ignore errors.
type Emitter interface {
	// Emit sends a single event. Implementations may block briefly; use
	// EmitAsync from hot paths. Returns an error only on write failure.
	Emit(ctx context.Context, event *LinkEvent) error
}
