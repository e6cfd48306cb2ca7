// Package notify defines the outbound message contract between the core flows
// and the chat transport.
package notify

import "context"

// Button is one inline keyboard button. Exactly one of URL or CallbackData
// should be set.
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Message is a chat message with optional formatting and inline keyboard.
// Buttons is a grid: one inner slice per keyboard row.
type Message struct {
	Text      string
	ParseMode string // "HTML", "Markdown", or empty for plain text
	Buttons   [][]Button
}

// Notifier delivers a message to a Telegram chat, best-effort. Callers inside
// loops log failures and continue; delivery errors never propagate upward.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, msg Message) error
}
