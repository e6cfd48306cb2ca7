// Package repository persists game_accounts writes. The bot only ever resets
// passwords; account rows are owned by the game server.
package repository

import "context"

// Repository defines the password-recovery write against game_accounts.
type Repository interface {
	// SetPassword overwrites the password for the named account. Returns false
	// when no account matched the name.
	SetPassword(ctx context.Context, name, password string) (bool, error)
}
