// Package codes tracks outstanding verification codes in memory with absolute
// expiry. The store is a cache of the telegram_links code column: the table is
// authoritative, and the store is rebuilt from it on startup.
package codes

import (
	"sync"
	"time"
)

// Entry is one active verification code for a link row.
type Entry struct {
	Code       int
	TelegramID int64
	ExpiresAt  time.Time
}

// Store is a mutex-guarded map of link row id to active code. It is shared by
// the monitor loop, the sweeper loop, and the bot handlers; every operation
// takes the whole-map lock because sweeps iterate while issues mutate.
type Store struct {
	mu   sync.Mutex
	m    map[int64]Entry
	nowF func() time.Time
}

// NewStore returns an empty code store.
func NewStore() *Store {
	return &Store{
		m:    make(map[int64]Entry),
		nowF: time.Now,
	}
}

// Issue records a code for the link row, replacing any previous entry for the
// same row. The entry expires ttl from now.
func (s *Store) Issue(recordID, telegramID int64, code int, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[recordID] = Entry{
		Code:       code,
		TelegramID: telegramID,
		ExpiresAt:  s.nowF().Add(ttl),
	}
}

// Expired returns the row ids of every entry whose expiry is at or before now.
// It does not mutate the store.
func (s *Store) Expired(now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, e := range s.m {
		if !e.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Remove deletes the entry for the row id. Removing an absent id is a no-op.
func (s *Store) Remove(recordID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, recordID)
}

// Get returns the entry for the row id if present.
func (s *Store) Get(recordID int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[recordID]
	return e, ok
}

// Len returns the number of active entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
