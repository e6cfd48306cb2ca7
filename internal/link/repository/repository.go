package repository

import (
	"context"

	"account-link-bot/internal/link/domain"
)

// Repository defines persistence for telegram_links rows. ListAll is the
// snapshot read used by the monitor; the write methods are single idempotent
// statements so a retry after a partial failure is harmless.
type Repository interface {
	// ListAll returns every link row in one query. The monitor treats the
	// result as an atomic snapshot of the table.
	ListAll(ctx context.Context) ([]*domain.Link, error)
	// GetByTelegramID returns the link row for the Telegram user, or nil if none.
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Link, error)
	// UpdateCode sets a fresh verification code and username on an existing
	// row. Returns false if no row matched.
	UpdateCode(ctx context.Context, telegramID int64, code int, username string) (bool, error)
	// Insert creates a new unbound row (owner_id 0) with the given code.
	Insert(ctx context.Context, telegramID int64, code int, username string) error
	// ClearCode zeroes the code column for the given row id.
	ClearCode(ctx context.Context, id int64) error
	// Delete removes the row for the Telegram user. Returns false if no row matched.
	Delete(ctx context.Context, telegramID int64) (bool, error)
}
