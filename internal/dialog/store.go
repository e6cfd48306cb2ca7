// Package dialog holds per-user interaction state for multi-step chat flows.
// State is ephemeral by design: a restart drops every pending challenge, which
// only means the user taps the unlink button again.
package dialog

import "sync"

// Step is the current position of a user in a chat flow.
type Step int

const (
	// StepNone means no flow is active for the user.
	StepNone Step = iota
	// StepAwaitingChallenge means the user owes an answer to a pending
	// arithmetic challenge; free-text messages are routed to the unlink flow.
	StepAwaitingChallenge
)

type sessionState struct {
	step Step
	data map[string]string
}

type challengeState struct {
	answer   string
	attempts int
}

// Store keeps one session state and at most one challenge per Telegram user.
// A user drives one flow at a time, so last write wins per user.
type Store struct {
	mu         sync.Mutex
	sessions   map[int64]sessionState
	challenges map[int64]*challengeState
}

// NewStore returns an empty dialog store.
func NewStore() *Store {
	return &Store{
		sessions:   make(map[int64]sessionState),
		challenges: make(map[int64]*challengeState),
	}
}

// SetStep records the user's current step, replacing any previous session state.
func (s *Store) SetStep(userID int64, step Step) {
	s.SetStepData(userID, step, nil)
}

// SetStepData records the user's current step with attached flow data.
func (s *Store) SetStepData(userID int64, step Step, data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sessionState{step: step, data: data}
}

// Step returns the user's current step; StepNone when no session exists.
func (s *Store) Step(userID int64) Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID].step
}

// StepData returns the data attached to the user's session, or nil.
func (s *Store) StepData(userID int64) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID].data
}

// SetChallenge stores the expected answer for the user with a zero attempt
// count, replacing any pending challenge.
func (s *Store) SetChallenge(userID int64, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[userID] = &challengeState{answer: answer}
}

// Verify evaluates an answer against the user's pending challenge. Every
// evaluation counts as an attempt. A correct answer removes the challenge.
// present is false when the user has no pending challenge; then nothing is
// counted and ok is false.
func (s *Store) Verify(userID int64, answer string) (ok bool, attempts int, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.challenges[userID]
	if !found {
		return false, 0, false
	}
	c.attempts++
	if answer == c.answer {
		delete(s.challenges, userID)
		return true, c.attempts, true
	}
	return false, c.attempts, true
}

// Attempts returns the number of evaluated answers for the user's pending
// challenge; 0 when none is pending.
func (s *Store) Attempts(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, found := s.challenges[userID]; found {
		return c.attempts
	}
	return 0
}

// Clear removes the user's session state and pending challenge. Idempotent.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	delete(s.challenges, userID)
}
