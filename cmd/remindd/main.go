package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/ai"
	"remindd/internal/alarm"
	"remindd/internal/alarmstore"
	"remindd/internal/bot"
	"remindd/internal/config"
	"remindd/internal/database"
	"remindd/internal/firing"
	"remindd/internal/notify"
	"remindd/internal/orchestrator"
	"remindd/internal/reconcile"
	"remindd/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate required config
	if cfg.DatabaseURI == "" {
		log.Fatal("DATABASE_URI is required")
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Open the local alarm store. It stays writable when the database
	// is not reachable, so firings and responses survive outages.
	if err := os.MkdirAll(filepath.Dir(cfg.AlarmStorePath), 0o755); err != nil {
		log.Fatalf("Failed to create alarm store directory: %v", err)
	}
	alarms, err := alarmstore.Open(cfg.AlarmStorePath)
	if err != nil {
		log.Fatalf("Failed to open alarm store: %v", err)
	}
	defer alarms.Close()
	log.Printf("Alarm store ready at %s", cfg.AlarmStorePath)

	// Initialize AI client (optional)
	var aiClient *ai.Client
	if cfg.AIAPIKey != "" {
		aiClient = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Printf("AI client initialized (model: %s)", cfg.AIModel)
	} else {
		log.Println("AI client not configured, natural language features disabled")
	}

	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram API: %v", err)
	}

	// Wire the firing path: scheduler -> firing handler -> notifier,
	// with the orchestrator as the foreground sink.
	reminderRepo := repository.NewReminderRepository(db)
	fireEventRepo := repository.NewFireEventRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	sched := alarm.NewTimerScheduler(func() bool { return cfg.ExactWake })
	orch := orchestrator.New(reminderRepo, fireEventRepo, alarms, sched)

	notifier := notify.NewTelegram(tgAPI)
	fh := firing.NewHandler(alarms, notifier, settingsRepo)
	fh.SetForeground(orch)
	sched.OnFire(fh.HandleWake)

	engine := reconcile.New(alarms, orch)
	orch.OnChange(engine.Notify)
	go engine.Start(ctx)

	// Arm everything that was scheduled before this process started.
	if err := orch.RefreshAll(ctx); err != nil {
		log.Printf("Startup refresh: %v", err)
	}

	// Re-derive schedules shortly after each local midnight so day-based
	// rules roll over even if nothing else happens.
	go firing.RunMidnightRefresh(ctx, time.Local, func() {
		if err := orch.RefreshAll(ctx); err != nil {
			log.Printf("Midnight refresh: %v", err)
		}
	})

	b, err := bot.New(tgAPI, db, orch, fh, aiClient)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Bot error: %v", err)
	}
}
