// bot runs the Telegram linking assistant: the update router plus the
// link-table monitor and the code expiry sweeper.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountrepo "account-link-bot/internal/account/repository"
	"account-link-bot/internal/audit"
	auditrepo "account-link-bot/internal/audit/repository"
	"account-link-bot/internal/codes"
	"account-link-bot/internal/config"
	"account-link-bot/internal/db"
	"account-link-bot/internal/dialog"
	"account-link-bot/internal/events"
	linkrepo "account-link-bot/internal/link/repository"
	"account-link-bot/internal/link/service"
	"account-link-bot/internal/monitor"
	"account-link-bot/internal/telegram"
	otelsetup "account-link-bot/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set; create a .env from .env.example or set TELEGRAM_BOT_TOKEN")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("bot: shutting down...")
		cancel()
	}()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "account-link-bot", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
		}
	}()

	var emitter events.Emitter
	if producer := events.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.LinkEventsKafkaTopic); producer != nil {
		emitter = producer
		defer producer.Close()
		log.Printf("bot: emitting link events to kafka topic %s", cfg.LinkEventsKafkaTopic)
	} else if cfg.OTLPEndpoint != "" {
		emitter = events.NewOTelEmitter(providers.LoggerProvider)
		log.Println("bot: emitting link events as OTel logs")
	}

	links := linkrepo.NewPostgresRepository(conn)
	accounts := accountrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn))

	codeStore := codes.NewStore()
	dialogs := dialog.NewStore()

	svc := service.NewService(links, accounts, dialogs, codeStore, emitter, auditor)
	client := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBaseURL)

	detector := monitor.NewDetector(links, client, codeStore, emitter,
		cfg.PollInterval(), cfg.ErrorBackoff(), cfg.CodeTTL(), cfg.SupportURL, cfg.ServerLabel)
	if err := detector.Bootstrap(ctx); err != nil {
		// First poll will retry; starting without the snapshot only delays notifications.
		log.Printf("bot: monitor bootstrap failed: %v", err)
	}
	sweeper := monitor.NewSweeper(codeStore, links, detector, emitter,
		cfg.SweepInterval(), cfg.ErrorBackoff())

	go detector.Run(ctx)
	go sweeper.Run(ctx)

	bot := telegram.NewBot(client, svc, dialogs, cfg.SupportURL, cfg.NewsChannel, cfg.ServerLabel)
	bot.Run(ctx)
}
