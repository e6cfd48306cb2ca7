package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"account-link-bot/internal/codes"
	"account-link-bot/internal/link/domain"
	"account-link-bot/internal/notify"
)

// fakeSource returns a fresh copy of each row per call, like a real query.
type fakeSource struct {
	mu   sync.Mutex
	rows []domain.Link
	err  error
}

func (f *fakeSource) ListAll(ctx context.Context) ([]*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Link, len(f.rows))
	for i := range f.rows {
		cp := f.rows[i]
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeSource) set(rows ...domain.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) Deliver(ctx context.Context, chatID int64, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID, msg.Text})
	return nil
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestDetector(source *fakeSource, notifier *fakeNotifier) (*Detector, *codes.Store) {
	registry := codes.NewStore()
	d := NewDetector(source, notifier, registry, nil,
		3*time.Second, 10*time.Second, time.Minute, "t.me/support", "01")
	return d, registry
}

func TestDetector_Bootstrap_RegistersCodesWithoutNotifying(t *testing.T) {
	source := &fakeSource{}
	source.set(
		domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 123456, PlayerName: "Some_Player"},
		domain.Link{ID: 2, TelegramID: 200, Code: 0},
	)
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)

	if err := d.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("registry entries = %d, want 1", registry.Len())
	}
	if _, ok := registry.Get(1); !ok {
		t.Error("code for row 1 should be registered")
	}
	if len(notifier.messages()) != 0 {
		t.Errorf("messages = %d, want none during bootstrap", len(notifier.messages()))
	}
}

func TestDetector_Tick_CodeChangeOnBoundRowNotifiesOnce(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 0, PlayerName: "Some_Player", ActionType: "Change email"})
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 654321, PlayerName: "Some_Player", ActionType: "Change email"})
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	entry, ok := registry.Get(1)
	if !ok {
		t.Fatal("code should be registered")
	}
	if entry.Code != 654321 {
		t.Errorf("registered code = %d, want 654321", entry.Code)
	}

	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].chatID != 100 {
		t.Errorf("chat id = %d, want 100", msgs[0].chatID)
	}
	if !strings.Contains(msgs[0].text, "654321") {
		t.Errorf("message %q should contain the code", msgs[0].text)
	}
	if !strings.Contains(msgs[0].text, "Some Player") {
		t.Errorf("message %q should contain the display name", msgs[0].text)
	}
	if !strings.Contains(msgs[0].text, "Change email") {
		t.Errorf("message %q should contain the action", msgs[0].text)
	}

	// Unchanged snapshot on the next tick: nothing fires again.
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(notifier.messages()) != 1 {
		t.Errorf("messages = %d after an unchanged tick, want still 1", len(notifier.messages()))
	}
}

func TestDetector_Tick_UnboundRowRegistersWithoutNotifying(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 0, Code: 0})
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 0, Code: 123456})
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if _, ok := registry.Get(1); !ok {
		t.Error("code should be registered even for an unbound row")
	}
	if len(notifier.messages()) != 0 {
		t.Errorf("messages = %d, want none for an unbound row", len(notifier.messages()))
	}
}

func TestDetector_Tick_BindNotification(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 0, Code: 123456, PlayerName: ""})
	notifier := &fakeNotifier{}
	d, _ := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 123456, PlayerName: "Some_Player"})
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].text, "linked") {
		t.Errorf("message %q should announce the link", msgs[0].text)
	}
	if !strings.Contains(msgs[0].text, "Some Player") {
		t.Errorf("message %q should contain the display name", msgs[0].text)
	}
}

func TestDetector_Tick_CodeAndBindInOneTick(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 0, Code: 0})
	notifier := &fakeNotifier{}
	d, _ := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 654321, PlayerName: "Some_Player"})
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	msgs := notifier.messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want code warning and bind confirmation", len(msgs))
	}
	// The code check runs before the bind check.
	if !strings.Contains(msgs[0].text, "654321") {
		t.Errorf("first message %q should be the code warning", msgs[0].text)
	}
	if !strings.Contains(msgs[1].text, "linked") {
		t.Errorf("second message %q should be the bind confirmation", msgs[1].text)
	}
}

func TestDetector_Tick_RemovedRowLosesRegistryEntry(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 123456})
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, ok := registry.Get(1); !ok {
		t.Fatal("code should be registered after bootstrap")
	}

	source.set()
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, ok := registry.Get(1); ok {
		t.Error("registry entry should be dropped with the row")
	}
}

func TestDetector_MarkCodeCleared_AllowsSameCodeToRefire(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 123456, PlayerName: "Some_Player"})
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// Sweeper cleared the column; the game server then writes the same code.
	registry.Remove(1)
	d.MarkCodeCleared(1)
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if _, ok := registry.Get(1); !ok {
		t.Error("the re-written code should register again")
	}
	if len(notifier.messages()) != 1 {
		t.Errorf("messages = %d, want 1 for the re-issued code", len(notifier.messages()))
	}
}

func TestDetector_Tick_FetchErrorLeavesStateUntouched(t *testing.T) {
	source := &fakeSource{}
	source.set(domain.Link{ID: 1, TelegramID: 100, OwnerID: 7, Code: 123456})
	notifier := &fakeNotifier{}
	d, registry := newTestDetector(source, notifier)
	ctx := context.Background()

	if err := d.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	source.mu.Lock()
	source.err = errors.New("connection refused")
	source.mu.Unlock()

	if err := d.tick(ctx); err == nil {
		t.Fatal("tick should surface the fetch error")
	}
	if _, ok := registry.Get(1); !ok {
		t.Error("registry should be untouched after a failed fetch")
	}

	// Recovery: the same snapshot produces no spurious notifications.
	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()
	if err := d.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(notifier.messages()) != 0 {
		t.Errorf("messages = %d, want none after recovery", len(notifier.messages()))
	}
}
