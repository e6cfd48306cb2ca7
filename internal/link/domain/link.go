package domain

import "strings"

// Link is one row of the telegram_links table: a (Telegram identity, game
// profile) linkage candidate. The game server owns the table; the bot reads
// it, overwrites Code, and deletes rows on unlink.
type Link struct {
	ID               int64
	OwnerID          int64 // 0 means the game account has not confirmed the link yet
	TelegramID       int64
	Code             int // 0 means no active verification code
	TelegramUsername string
	PlayerName       string // set by the game server once known
	ActionType       string // label of the in-game action that requested a code
}

// Bound reports whether the game account has confirmed this link.
func (l *Link) Bound() bool {
	return l.OwnerID != 0
}

// DisplayName returns the player name for user-facing messages: underscores
// become spaces, and a missing name renders as "Unknown".
func (l *Link) DisplayName() string {
	if l.PlayerName == "" {
		return "Unknown"
	}
	return strings.ReplaceAll(l.PlayerName, "_", " ")
}

// ActionLabel returns the action type for user-facing messages, or
// "Unknown action" when the game server did not set one.
func (l *Link) ActionLabel() string {
	if l.ActionType == "" {
		return "Unknown action"
	}
	return l.ActionType
}
