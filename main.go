package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trading-orchestrator/config"
	"trading-orchestrator/internal/api"
	"trading-orchestrator/internal/database"
	"trading-orchestrator/internal/events"
	"trading-orchestrator/internal/market"
	"trading-orchestrator/internal/notification"
	"trading-orchestrator/internal/orchestrator"
	"trading-orchestrator/internal/position"
	sigclient "trading-orchestrator/internal/signal"
	"trading-orchestrator/internal/stats"
)

func main() {
	// .env is optional; the config file and real env vars still apply.
	_ = godotenv.Load()

	cfgStore := config.NewStore(os.Getenv("CONFIG_PATH"))
	cfg, err := cfgStore.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Info().
		Int("pairs", len(cfg.TradingConfig.Pairs)).
		Float64("account_balance", cfg.TradingConfig.AccountBalance).
		Msg("Starting trading orchestrator")

	bus := events.NewEventBus()
	notifyManager := buildNotifications(cfg, logger)

	// Postgres trade archive is optional.
	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Database unavailable, trade archive disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := db.RunMigrations(ctx); err != nil {
				logger.Error().Err(err).Msg("Migrations failed, trade archive disabled")
				db.Close()
				db = nil
			} else {
				repo = database.NewRepository(db)
			}
			cancel()
		}
	}

	// Redis position snapshots survive restarts; without Redis the state
	// store degrades to in-process memory.
	var stateStore *database.PositionStateStore
	if cfg.RedisConfig.Enabled {
		stateStore = database.NewPositionStateStore(database.RedisConfig{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		}, logger)
	}

	priceFeed := buildPriceFeed(cfg, logger)
	signals := buildSignalProvider(cfg, logger)

	deps := orchestrator.Deps{
		ConfigStore: cfgStore,
		Store:       position.NewStore(logger),
		Stats:       stats.NewEngine(cfg.TradingConfig.AccountBalance, logger),
		PriceFeed:   priceFeed,
		Signals:     signals,
		Notify:      notifyManager,
		Bus:         bus,
		Logger:      logger,
	}
	if repo != nil {
		deps.Archive = repo
	}
	if stateStore != nil {
		deps.State = stateStore
	}

	orch := orchestrator.New(cfg, deps)
	if err := orch.Run(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start orchestrator")
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, orch, repo, bus, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Control surface stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Control surface shutdown error")
	}

	orch.Shutdown()

	if stateStore != nil {
		stateStore.Close()
	}
	if db != nil {
		db.Close()
	}

	logger.Info().Msg("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func buildNotifications(cfg *config.Config, logger zerolog.Logger) *notification.Manager {
	manager := notification.NewManager(logger)
	if !cfg.NotificationConfig.Enabled {
		return manager
	}

	if cfg.NotificationConfig.Telegram.Enabled {
		manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			Enabled:  true,
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
		}))
	}
	if cfg.NotificationConfig.Discord.Enabled {
		manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			Enabled:    true,
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
		}))
	}
	if cfg.NotificationConfig.Webhook.Enabled {
		manager.AddNotifier(notification.NewWebhookNotifier(notification.WebhookConfig{
			Enabled: true,
			URL:     cfg.NotificationConfig.Webhook.URL,
		}))
	}
	return manager
}

func buildPriceFeed(cfg *config.Config, logger zerolog.Logger) market.PriceFeed {
	if cfg.PriceFeedConfig.MockMode || cfg.PriceFeedConfig.BaseURL == "" {
		logger.Warn().Msg("Price feed running in mock mode")
		return market.NewMockClient()
	}
	return market.NewClient(market.ClientOptions{
		BaseURL: cfg.PriceFeedConfig.BaseURL,
		APIKey:  cfg.PriceFeedConfig.APIKey,
	}, logger)
}

func buildSignalProvider(cfg *config.Config, logger zerolog.Logger) sigclient.Provider {
	if cfg.SignalConfig.MockMode || cfg.SignalConfig.BaseURL == "" {
		logger.Warn().Msg("Signal engine running in mock mode")
		return sigclient.NewMockClient()
	}
	return sigclient.NewClient(sigclient.ClientOptions{
		BaseURL:        cfg.SignalConfig.BaseURL,
		APIKey:         cfg.SignalConfig.APIKey,
		Timeout:        time.Duration(cfg.SignalConfig.TimeoutSecs) * time.Second,
		RequestsPerSec: cfg.SignalConfig.RequestsPerSec,
	}, logger)
}
