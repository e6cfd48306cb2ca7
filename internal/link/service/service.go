// Package service implements the chat-facing link operations: issuing
// verification codes, recovering passwords, and the captcha-gated unlink flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	accountrepo "account-link-bot/internal/account/repository"
	"account-link-bot/internal/audit"
	"account-link-bot/internal/challenge"
	"account-link-bot/internal/codes"
	"account-link-bot/internal/dialog"
	"account-link-bot/internal/events"
	linkrepo "account-link-bot/internal/link/repository"
)

var (
	// ErrNotLinked is returned when the Telegram user has no confirmed link row.
	ErrNotLinked = errors.New("telegram user is not linked to a game account")
	// ErrAccountNotFound is returned when the linked player name matches no
	// game account.
	ErrAccountNotFound = errors.New("game account not found")
)

// recoveryPasswordLength is the length of generated recovery passwords.
const recoveryPasswordLength = 8

// maxChallengeAttempts is how many captcha answers a user gets before the
// unlink flow aborts.
const maxChallengeAttempts = 3

// Outcome classifies a submitted captcha answer.
type Outcome int

const (
	// OutcomeNoChallenge means the user has no pending challenge.
	OutcomeNoChallenge Outcome = iota
	// OutcomeConfirmed means the answer was correct; the caller proceeds to
	// the final unlink confirmation.
	OutcomeConfirmed
	// OutcomeRetry means the answer was wrong but attempts remain.
	OutcomeRetry
	// OutcomeAborted means the attempt limit was reached and the flow ended.
	OutcomeAborted
)

// IssueResult is the outcome of a code request.
type IssueResult struct {
	// AlreadyBound is true when the user already has a confirmed link; no new
	// code is issued then.
	AlreadyBound bool
	// PlayerName is the display name of the bound account when AlreadyBound.
	PlayerName string
	// Code is the freshly issued verification code when not AlreadyBound.
	Code int
}

// Service coordinates link state across the database, the in-memory stores,
// and the event pipeline.
type Service struct {
	links    linkrepo.Repository
	accounts accountrepo.Repository
	dialogs  *dialog.Store
	codes    *codes.Store
	emitter  events.Emitter
	auditor  audit.AuditLogger
}

// NewService wires the link service. emitter and auditor may be nil.
func NewService(links linkrepo.Repository, accounts accountrepo.Repository, dialogs *dialog.Store, codeStore *codes.Store, emitter events.Emitter, auditor audit.AuditLogger) *Service {
	return &Service{
		links:    links,
		accounts: accounts,
		dialogs:  dialogs,
		codes:    codeStore,
		emitter:  emitter,
		auditor:  auditor,
	}
}

// IssueOrReportExisting handles a code request from the Telegram user. An
// already-bound user gets their player name back instead of a code. Otherwise
// a fresh 6-digit code is written to the user's row (created if absent); the
// monitor loop picks up the write and starts the expiry clock.
func (s *Service) IssueOrReportExisting(ctx context.Context, telegramID int64, username string) (*IssueResult, error) {
	link, err := s.links.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if link != nil && link.Bound() {
		return &IssueResult{AlreadyBound: true, PlayerName: link.DisplayName()}, nil
	}

	code, err := challenge.Code()
	if err != nil {
		return nil, err
	}
	if link != nil {
		updated, err := s.links.UpdateCode(ctx, telegramID, code, username)
		if err != nil {
			return nil, err
		}
		if !updated {
			// Row vanished between read and write; recreate it.
			if err := s.links.Insert(ctx, telegramID, code, username); err != nil {
				return nil, err
			}
		}
	} else {
		if err := s.links.Insert(ctx, telegramID, code, username); err != nil {
			return nil, err
		}
	}
	s.logAudit(ctx, telegramID, "code_requested", "telegram_links", fmt.Sprintf(`{"code":%d}`, code))
	return &IssueResult{Code: code}, nil
}

// RecoverPassword generates a fresh password for the user's bound game account
// and writes it to the account row. Returns the display name and the new
// password. Fails with ErrNotLinked when no confirmed link exists and with
// ErrAccountNotFound when the player name matches no game account.
func (s *Service) RecoverPassword(ctx context.Context, telegramID int64) (playerName, password string, err error) {
	link, err := s.links.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", "", err
	}
	if link == nil || !link.Bound() || link.PlayerName == "" {
		return "", "", ErrNotLinked
	}
	password, err = challenge.Password(recoveryPasswordLength)
	if err != nil {
		return "", "", err
	}
	updated, err := s.accounts.SetPassword(ctx, link.PlayerName, password)
	if err != nil {
		return "", "", err
	}
	if !updated {
		return "", "", ErrAccountNotFound
	}
	s.logAudit(ctx, telegramID, "password_recovered", "game_accounts", "")
	events.EmitAsync(s.emitter, &events.LinkEvent{
		EventType:  events.TypePasswordRecovered,
		RecordID:   link.ID,
		TelegramID: telegramID,
		PlayerName: link.PlayerName,
		Source:     "bot",
		CreatedAt:  time.Now().UTC(),
	})
	return link.DisplayName(), password, nil
}

// BeginUnlink starts the captcha-gated unlink flow. Returns the arithmetic
// prompt the user must answer. Starting a new flow replaces any pending
// challenge and resets its attempt count.
func (s *Service) BeginUnlink(ctx context.Context, telegramID int64) (prompt string, err error) {
	link, err := s.links.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrNotLinked
	}
	prompt, answer := challenge.Arithmetic()
	s.dialogs.SetChallenge(telegramID, answer)
	s.dialogs.SetStep(telegramID, dialog.StepAwaitingChallenge)
	return prompt, nil
}

// SubmitAnswer evaluates a captcha answer. Every submission counts against the
// attempt limit; the third wrong answer aborts the flow and clears all state.
// A correct answer leaves the session open for the final confirmation step.
func (s *Service) SubmitAnswer(telegramID int64, answer string) (Outcome, int) {
	ok, attempts, present := s.dialogs.Verify(telegramID, strings.TrimSpace(answer))
	if !present {
		return OutcomeNoChallenge, 0
	}
	if ok {
		return OutcomeConfirmed, attempts
	}
	if attempts >= maxChallengeAttempts {
		s.dialogs.Clear(telegramID)
		return OutcomeAborted, attempts
	}
	return OutcomeRetry, attempts
}

// CancelUnlink abandons any pending unlink flow for the user. Idempotent.
func (s *Service) CancelUnlink(telegramID int64) {
	s.dialogs.Clear(telegramID)
}

// CompleteUnlink deletes the user's link row after the flow was confirmed.
// Returns the display name of the unlinked account. Any outstanding code for
// the row is dropped from the code store so the sweeper never touches the
// deleted row.
func (s *Service) CompleteUnlink(ctx context.Context, telegramID int64) (playerName string, err error) {
	link, err := s.links.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if link == nil {
		s.dialogs.Clear(telegramID)
		return "", ErrNotLinked
	}
	deleted, err := s.links.Delete(ctx, telegramID)
	if err != nil {
		return "", err
	}
	s.dialogs.Clear(telegramID)
	if !deleted {
		return "", ErrNotLinked
	}
	s.codes.Remove(link.ID)
	s.logAudit(ctx, telegramID, "account_unlinked", "telegram_links", fmt.Sprintf(`{"player":%q}`, link.PlayerName))
	events.EmitAsync(s.emitter, &events.LinkEvent{
		EventType:  events.TypeAccountUnlinked,
		RecordID:   link.ID,
		TelegramID: telegramID,
		PlayerName: link.PlayerName,
		Source:     "bot",
		CreatedAt:  time.Now().UTC(),
	})
	return link.DisplayName(), nil
}

func (s *Service) logAudit(ctx context.Context, telegramID int64, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, telegramID, action, resource, metadata)
}
