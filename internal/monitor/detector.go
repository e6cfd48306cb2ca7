// Package monitor watches the telegram_links table for writes made by the
// game server and turns them into chat notifications, code-registry entries,
// and link events. The game server has no way to call the bot, so polling the
// shared table is the only signal path.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"account-link-bot/internal/codes"
	"account-link-bot/internal/events"
	"account-link-bot/internal/link/domain"
	"account-link-bot/internal/notify"
)

// RecordSource is the snapshot read the detector polls.
type RecordSource interface {
	ListAll(ctx context.Context) ([]*domain.Link, error)
}

// Detector polls the link table and diffs consecutive snapshots. A code value
// change to nonzero starts the expiry clock and, for bound rows, a code
// notification; an owner change from zero to nonzero sends a bind
// confirmation. Per row the code check runs before the bind check, and both
// may fire in the same tick.
type Detector struct {
	source   RecordSource
	notifier notify.Notifier
	registry *codes.Store
	emitter  events.Emitter

	pollInterval time.Duration
	errorBackoff time.Duration
	codeTTL      time.Duration
	supportURL   string
	serverLabel  string

	mu   sync.Mutex
	prev map[int64]*domain.Link
}

// NewDetector wires a detector. notifier and emitter may be nil. supportURL
// and serverLabel feed the notification copy.
func NewDetector(source RecordSource, notifier notify.Notifier, registry *codes.Store, emitter events.Emitter, pollInterval, errorBackoff, codeTTL time.Duration, supportURL, serverLabel string) *Detector {
	return &Detector{
		source:       source,
		notifier:     notifier,
		registry:     registry,
		emitter:      emitter,
		pollInterval: pollInterval,
		errorBackoff: errorBackoff,
		codeTTL:      codeTTL,
		supportURL:   supportURL,
		serverLabel:  serverLabel,
		prev:         make(map[int64]*domain.Link),
	}
}

// Bootstrap seeds the previous snapshot from the table without sending any
// notifications. Codes already present get registry entries with a full TTL,
// so codes issued while the bot was down still expire.
func (d *Detector) Bootstrap(ctx context.Context) error {
	rows, err := d.source.ListAll(ctx)
	if err != nil {
		return err
	}
	snapshot := make(map[int64]*domain.Link, len(rows))
	for _, row := range rows {
		snapshot[row.ID] = row
		if row.Code != 0 {
			d.registry.Issue(row.ID, row.TelegramID, row.Code, d.codeTTL)
		}
	}
	d.mu.Lock()
	d.prev = snapshot
	d.mu.Unlock()
	log.Printf("monitor: bootstrapped %d rows, %d active codes", len(rows), d.registry.Len())
	return nil
}

// Run polls until ctx is cancelled. A failed poll logs and backs off; the
// loop never stops on its own.
func (d *Detector) Run(ctx context.Context) {
	log.Printf("monitor: polling every %s", d.pollInterval)
	for {
		wait := d.pollInterval
		if err := d.tick(ctx); err != nil {
			log.Printf("monitor: poll failed: %v", err)
			wait = d.errorBackoff
		}
		select {
		case <-ctx.Done():
			log.Println("monitor: stopped")
			return
		case <-time.After(wait):
		}
	}
}

// MarkCodeCleared patches the cached snapshot row to code 0 after the sweeper
// cleared the column. Without the patch, the game server writing the same
// code again after expiry would not register as a change.
func (d *Detector) MarkCodeCleared(recordID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row, ok := d.prev[recordID]; ok {
		row.Code = 0
	}
}

// delivery is a notification decided while holding the snapshot lock and sent
// after releasing it.
type delivery struct {
	chatID int64
	msg    notify.Message
}

func (d *Detector) tick(ctx context.Context) error {
	rows, err := d.source.ListAll(ctx)
	if err != nil {
		return err
	}

	var (
		deliveries []delivery
		emitted    []*events.LinkEvent
	)
	next := make(map[int64]*domain.Link, len(rows))

	d.mu.Lock()
	for _, row := range rows {
		next[row.ID] = row
		old, seen := d.prev[row.ID]

		if row.Code != 0 && (!seen || old.Code != row.Code) {
			d.registry.Issue(row.ID, row.TelegramID, row.Code, d.codeTTL)
			if row.Bound() {
				deliveries = append(deliveries, delivery{row.TelegramID, d.codeMessage(row)})
			}
			emitted = append(emitted, &events.LinkEvent{
				EventType:  events.TypeCodeIssued,
				RecordID:   row.ID,
				TelegramID: row.TelegramID,
				PlayerName: row.PlayerName,
				Source:     "monitor",
				CreatedAt:  time.Now().UTC(),
			})
		}
		if seen && old.OwnerID == 0 && row.OwnerID != 0 {
			deliveries = append(deliveries, delivery{row.TelegramID, d.boundMessage(row)})
			emitted = append(emitted, &events.LinkEvent{
				EventType:  events.TypeAccountBound,
				RecordID:   row.ID,
				TelegramID: row.TelegramID,
				PlayerName: row.PlayerName,
				Source:     "monitor",
				CreatedAt:  time.Now().UTC(),
			})
		}
	}
	for id := range d.prev {
		if _, ok := next[id]; !ok {
			d.registry.Remove(id)
		}
	}
	d.prev = next
	d.mu.Unlock()

	for _, ev := range emitted {
		events.EmitAsync(d.emitter, ev)
	}
	for _, n := range deliveries {
		if d.notifier == nil {
			continue
		}
		if err := d.notifier.Deliver(ctx, n.chatID, n.msg); err != nil {
			log.Printf("monitor: notify %d failed: %v", n.chatID, err)
		}
	}
	return nil
}

func (d *Detector) codeMessage(row *domain.Link) notify.Message {
	text := fmt.Sprintf(
		"⚠️ Your account *%s* on server *%s* requested the action «%s». *Confirmation code: %d*\n\n"+
			"Never share this code with anyone, not even the project administration. "+
			"If you did not request this action, contact technical support.",
		row.DisplayName(), d.serverLabel, row.ActionLabel(), row.Code)
	msg := notify.Message{Text: text, ParseMode: "Markdown"}
	if d.supportURL != "" {
		msg.Buttons = [][]notify.Button{{{Text: "Contact support", URL: d.supportURL}}}
	}
	return msg
}

func (d *Detector) boundMessage(row *domain.Link) notify.Message {
	text := fmt.Sprintf(
		"✅ Account %s on server %s is *successfully linked* to the Telegram assistant.",
		row.DisplayName(), d.serverLabel)
	return notify.Message{Text: text, ParseMode: "Markdown"}
}
