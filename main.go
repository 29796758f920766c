package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"safeguard/internal/alert"
	"safeguard/internal/config"
	"safeguard/internal/orchestrator"
	"safeguard/internal/repository"
	"safeguard/internal/safety"
	"safeguard/internal/server"
	"safeguard/internal/verifier"
)

func main() {
	_ = godotenv.Load()

	var logger *zap.Logger
	var err error
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Static safety tables, loaded once and injected by reference
	keywordTable, err := safety.LoadKeywordTable(cfg.Safety.KeywordTableFile)
	if err != nil {
		logger.Fatal("Failed to load keyword table", zap.Error(err))
	}
	scanner, err := safety.NewScanner(keywordTable)
	if err != nil {
		logger.Fatal("Failed to build keyword scanner", zap.Error(err))
	}

	helplineTable, err := safety.LoadHelplineTable(cfg.Safety.HelplineTableFile)
	if err != nil {
		logger.Fatal("Failed to load helpline table", zap.Error(err))
	}
	helplines, err := safety.NewRegistry(helplineTable)
	if err != nil {
		logger.Fatal("Failed to build helpline registry", zap.Error(err))
	}

	// Initialize repositories
	messageRepo := repository.NewMessageRepository(db, logger)
	flagRepo := repository.NewFlagRepository(db, logger)
	profileRepo := repository.NewProfileRepository(db, logger)

	// Concern verifier backed by the classification model
	concernVerifier := verifier.NewVerifier(verifier.Config{
		APIKey:      cfg.ClassifierAPIKey,
		BaseURL:     cfg.Classifier.BaseURL,
		Model:       cfg.Classifier.Model,
		Timeout:     time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second,
		AdviceLevel: cfg.Safety.AdviceThreshold,
	}, helplines, logger)

	// Alert channels
	var channels []alert.Dispatcher
	if cfg.Alerts.Email.Enabled {
		channels = append(channels, alert.NewEmailDispatcher(cfg.SendgridAPIKey, cfg.Alerts.Email.AppName, cfg.Alerts.Email.FromEmail, logger))
	}
	if cfg.Alerts.Telegram.Enabled {
		tg, err := alert.NewTelegramDispatcher(cfg.TelegramBotToken, cfg.Alerts.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn("Failed to initialize Telegram alert channel, continuing without it", zap.Error(err))
		} else {
			channels = append(channels, tg)
		}
	}
	var dispatcher alert.Dispatcher
	if len(channels) > 0 {
		dispatcher = &alert.MultiDispatcher{Channels: channels}
	} else {
		dispatcher = &alert.ConsoleDispatcher{Logger: logger}
	}

	// Escalation orchestrator
	orch := orchestrator.NewOrchestrator(scanner, concernVerifier, messageRepo, flagRepo, profileRepo, dispatcher, orchestrator.Config{
		EscalationThreshold: cfg.Safety.EscalationThreshold,
		AdviceThreshold:     cfg.Safety.AdviceThreshold,
		ReviewBaseURL:       cfg.Safety.ReviewBaseURL,
	}, logger)

	// Initialize and run the server
	srv := server.NewServer(cfg, orch, flagRepo, logger)
	srv.Run(cfg.Server.Port)
}
