package main

import (
	"go.uber.org/zap"

	"github.com/sorenh/handoff-bot/internal/handoff"
	"github.com/sorenh/handoff-bot/internal/responder"
	"github.com/sorenh/handoff-bot/internal/telegram"
	"github.com/sorenh/handoff-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize hand-off store
	var store handoff.Store
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory hand-off store")
		store = handoff.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL hand-off store")
		dbConfig := handoff.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = handoff.NewPostgresStore(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize hand-off store", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize automated responder
	var resp responder.Responder
	if cfg.OpenAI.APIKey != "" {
		resp = responder.NewGPTResponder(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	} else {
		logger.Info("No OpenAI key configured, using echo responder")
		resp = responder.NewEchoResponder()
	}

	// Initialize bot
	b, err := telegram.New(cfg.Telegram.Token, store, resp, cfg.Telegram.AgentIDs, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
