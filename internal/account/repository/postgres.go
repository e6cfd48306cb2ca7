package repository

import (
	"context"
	"database/sql"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SetPassword overwrites the password column for the named account.
// The game server reads this column as-is, so the value is stored unhashed.
func (r *PostgresRepository) SetPassword(ctx context.Context, name, password string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE game_accounts SET password = $1 WHERE name = $2", password, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
