package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"account-link-bot/internal/codes"
)

type fakeSink struct {
	mu       sync.Mutex
	cleared  []int64
	clearErr error
}

func (f *fakeSink) ClearCode(ctx context.Context, recordID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, recordID)
	return nil
}

type fakePatcher struct {
	mu     sync.Mutex
	marked []int64
}

func (f *fakePatcher) MarkCodeCleared(recordID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, recordID)
}

func TestSweeper_Sweep_ClearsExpiredCodes(t *testing.T) {
	registry := codes.NewStore()
	registry.Issue(1, 100, 111111, -time.Second)
	registry.Issue(2, 200, 222222, time.Minute)
	sink := &fakeSink{}
	patcher := &fakePatcher{}
	s := NewSweeper(registry, sink, patcher, nil, 5*time.Second, 10*time.Second)

	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(sink.cleared) != 1 || sink.cleared[0] != 1 {
		t.Errorf("cleared = %v, want [1]", sink.cleared)
	}
	if _, ok := registry.Get(1); ok {
		t.Error("expired entry should be removed")
	}
	if _, ok := registry.Get(2); !ok {
		t.Error("live entry should survive the sweep")
	}
	if len(patcher.marked) != 1 || patcher.marked[0] != 1 {
		t.Errorf("marked = %v, want [1]", patcher.marked)
	}
}

func TestSweeper_Sweep_WriteFailureLeavesEntryForRetry(t *testing.T) {
	registry := codes.NewStore()
	registry.Issue(1, 100, 111111, -time.Second)
	sink := &fakeSink{clearErr: errors.New("connection refused")}
	s := NewSweeper(registry, sink, nil, nil, 5*time.Second, 10*time.Second)
	ctx := context.Background()

	if err := s.sweep(ctx); err == nil {
		t.Fatal("sweep should surface the write error")
	}
	if _, ok := registry.Get(1); !ok {
		t.Fatal("entry should remain after a failed clear")
	}

	// The write succeeds on retry.
	sink.mu.Lock()
	sink.clearErr = nil
	sink.mu.Unlock()
	if err := s.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, ok := registry.Get(1); ok {
		t.Error("entry should be removed after the retried clear")
	}
}

func TestSweeper_Sweep_NothingExpired(t *testing.T) {
	registry := codes.NewStore()
	registry.Issue(1, 100, 111111, time.Minute)
	sink := &fakeSink{}
	s := NewSweeper(registry, sink, nil, nil, 5*time.Second, 10*time.Second)

	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sink.cleared) != 0 {
		t.Errorf("cleared = %v, want none", sink.cleared)
	}
}

func TestSweeper_Sweep_ClockHook(t *testing.T) {
	registry := codes.NewStore()
	registry.Issue(1, 100, 111111, time.Minute)
	sink := &fakeSink{}
	s := NewSweeper(registry, sink, nil, nil, 5*time.Second, 10*time.Second)
	s.nowF = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(sink.cleared) != 1 {
		t.Errorf("cleared = %v, want the entry expired by the advanced clock", sink.cleared)
	}
}
