// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev link row (telegram_id 111000111) already exists.
package main

import (
	"context"
	"log"
	"os"

	"account-link-bot/internal/config"
	"account-link-bot/internal/db"
	linkrepo "account-link-bot/internal/link/repository"
)

const (
	devTelegramID = int64(111000111)
	devUsername   = "dev_tester"
	devPlayerName = "Dev_Player"
	devPassword   = "Passw0rd"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	links := linkrepo.NewPostgresRepository(conn)

	existing, err := links.GetByTelegramID(ctx, devTelegramID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev link row exists). Skipping.")
		os.Exit(0)
	}

	// An unbound row with a pending code, as if the dev user just ran /addcode.
	if err := links.Insert(ctx, devTelegramID, 123456, devUsername); err != nil {
		log.Fatalf("create dev link: %v", err)
	}

	// A bound row with a game account behind it, for recovery and unlink flows.
	if _, err := conn.ExecContext(ctx,
		"INSERT INTO telegram_links (owner_id, telegram_id, code, telegram_username, player_name, action_type) VALUES ($1, $2, 0, $3, $4, $5)",
		42, devTelegramID+1, devUsername+"_bound", devPlayerName, "Change email"); err != nil {
		log.Fatalf("create bound link: %v", err)
	}
	if _, err := conn.ExecContext(ctx,
		"INSERT INTO game_accounts (name, password) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
		devPlayerName, devPassword); err != nil {
		log.Fatalf("create game account: %v", err)
	}

	log.Println("Seed completed successfully.")
	log.Printf("Dev rows: telegram_id %d (unbound, code pending) and %d (bound to %s)", devTelegramID, devTelegramID+1, devPlayerName)
}
