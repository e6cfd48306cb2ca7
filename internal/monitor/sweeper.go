package monitor

import (
	"context"
	"log"
	"time"

	"account-link-bot/internal/codes"
	"account-link-bot/internal/events"
)

// WriteSink is the store write the sweeper performs on expiry.
type WriteSink interface {
	ClearCode(ctx context.Context, recordID int64) error
}

// SnapshotPatcher lets the sweeper tell the detector that a code column was
// cleared outside the game server's writes.
type SnapshotPatcher interface {
	MarkCodeCleared(recordID int64)
}

// Sweeper removes verification codes whose TTL elapsed: the code column is
// zeroed in the store first, and only then the registry entry is dropped. A
// failed write leaves the entry in place so the next sweep retries it.
type Sweeper struct {
	registry *codes.Store
	sink     WriteSink
	patcher  SnapshotPatcher
	emitter  events.Emitter

	sweepInterval time.Duration
	errorBackoff  time.Duration
	nowF          func() time.Time
}

// NewSweeper wires a sweeper. patcher and emitter may be nil.
func NewSweeper(registry *codes.Store, sink WriteSink, patcher SnapshotPatcher, emitter events.Emitter, sweepInterval, errorBackoff time.Duration) *Sweeper {
	return &Sweeper{
		registry:      registry,
		sink:          sink,
		patcher:       patcher,
		emitter:       emitter,
		sweepInterval: sweepInterval,
		errorBackoff:  errorBackoff,
		nowF:          time.Now,
	}
}

// Run sweeps until ctx is cancelled. A sweep with write failures logs and
// backs off; the loop never stops on its own.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("sweeper: sweeping every %s", s.sweepInterval)
	for {
		wait := s.sweepInterval
		if err := s.sweep(ctx); err != nil {
			log.Printf("sweeper: sweep failed: %v", err)
			wait = s.errorBackoff
		}
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-time.After(wait):
		}
	}
}

// sweep clears every expired code once. It returns the first write error so
// Run backs off, but keeps going through the remaining expired entries.
func (s *Sweeper) sweep(ctx context.Context) error {
	var firstErr error
	for _, id := range s.registry.Expired(s.nowF()) {
		entry, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		if err := s.sink.ClearCode(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.registry.Remove(id)
		if s.patcher != nil {
			s.patcher.MarkCodeCleared(id)
		}
		log.Printf("sweeper: code for row %d expired", id)
		events.EmitAsync(s.emitter, &events.LinkEvent{
			EventType:  events.TypeCodeExpired,
			RecordID:   id,
			TelegramID: entry.TelegramID,
			Source:     "sweeper",
			CreatedAt:  time.Now().UTC(),
		})
	}
	return firstErr
}
