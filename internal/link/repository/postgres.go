package repository

import (
	"context"
	"database/sql"
	"errors"

	"account-link-bot/internal/link/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a link repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const linkColumns = "id, owner_id, telegram_id, code, telegram_username, player_name, action_type"

// ListAll returns every telegram_links row in a single query.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+linkColumns+" FROM telegram_links")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetByTelegramID returns the link row for the given Telegram user, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM telegram_links WHERE telegram_id = $1", telegramID)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// UpdateCode sets the code and username for an existing row. Returns false when no row matched.
func (r *PostgresRepository) UpdateCode(ctx context.Context, telegramID int64, code int, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE telegram_links SET code = $1, telegram_username = $2 WHERE telegram_id = $3",
		code, username, telegramID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert creates a fresh unbound row with the given code.
func (r *PostgresRepository) Insert(ctx context.Context, telegramID int64, code int, username string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO telegram_links (owner_id, telegram_id, code, telegram_username) VALUES (0, $1, $2, $3)",
		telegramID, code, username)
	return err
}

// ClearCode zeroes the code column for the given row id. A row that no longer
// exists is not an error; the zero-write is idempotent.
func (r *PostgresRepository) ClearCode(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE telegram_links SET code = 0 WHERE id = $1", id)
	return err
}

// Delete removes the row for the Telegram user. Returns false when no row matched.
func (r *PostgresRepository) Delete(ctx context.Context, telegramID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM telegram_links WHERE telegram_id = $1", telegramID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var (
		l          domain.Link
		playerName sql.NullString
		actionType sql.NullString
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.TelegramID, &l.Code, &l.TelegramUsername, &playerName, &actionType)
	if err != nil {
		return nil, err
	}
	if playerName.Valid {
		l.PlayerName = playerName.String
	}
	if actionType.Valid {
		l.ActionType = actionType.String
	}
	return &l, nil
}
