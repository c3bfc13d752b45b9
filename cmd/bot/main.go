package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"psybot/internal/admin"
	"psybot/internal/config"
	"psybot/internal/conversation"
	"psybot/internal/generator"
	"psybot/internal/middleware"
	"psybot/internal/moderation"
	"psybot/internal/questionnaire"
	"psybot/internal/ratelimit"
	"psybot/internal/repository"
	"psybot/internal/server"
	"psybot/internal/telegram"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/config.yml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Production)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			logger.Error("Bot token is not configured, set BOT_TOKEN")
		} else {
			logger.Error("Invalid configuration", zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Application failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Application stopped.")
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter, closeLimiter, err := newLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	catalog := questionnaire.Default()
	if cfg.Questionnaire.Path != "" {
		catalog, err = questionnaire.Load(cfg.Questionnaire.Path)
		if err != nil {
			return fmt.Errorf("load questionnaire: %w", err)
		}
		logger.Info("Questionnaire catalog loaded", zap.String("path", cfg.Questionnaire.Path), zap.Int("topics", len(catalog.Topics)))
	}

	client, err := telegram.NewClient(cfg.Telegram.BotToken, logger)
	if err != nil {
		return err
	}

	admins := admin.NewChannel(cfg.Telegram.AdminIDs, client, logger)
	queue := moderation.NewQueue(store, admins, client, logger)
	engine := conversation.NewEngine(conversation.Deps{
		Store:     store,
		Generator: gen,
		Limiter:   limiter,
		Sender:    client,
		Admins:    admins,
		Submitter: queue,
		Catalog:   catalog,
	}, cfg.Generation.Timeout, logger)

	var tokens telegram.TokenIssuer
	if cfg.HTTP.Enabled {
		tokens = middleware.NewTokenIssuer(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
	}
	bot := telegram.NewBot(client, engine, queue, admins, telegram.Options{
		PollTimeout: cfg.Telegram.PollTimeout,
		DropPending: cfg.Telegram.DropPending,
		Tokens:      tokens,
	}, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Start(gctx)
	})
	if cfg.HTTP.Enabled {
		srv := server.NewServer(server.Options{
			Host:   cfg.HTTP.Host,
			Port:   cfg.HTTP.Port,
			Secret: cfg.HTTP.JWTSecret,
		}, queue, admins, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	logger.Info("Psybot started",
		zap.Int("admins", len(admins.IDs())),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("rate_limit", cfg.RateLimit.Backend),
		zap.String("generation", cfg.Generation.Provider))

	return g.Wait()
}

func openStore(cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return repository.NewSQLiteStore(cfg.Storage.Path, logger)
	default:
		return repository.NewJSONStore(cfg.Storage.Path, logger)
	}
}

func newLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.Backend == "redis" {
		l, err := ratelimit.NewRedisLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Interval)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Redis rate limiter", zap.Duration("interval", cfg.RateLimit.Interval))
		return l, func() { _ = l.Close() }, nil
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.Interval), func() {}, nil
}

func newGenerator(cfg *config.Config, logger *zap.Logger) (*generator.Chain, error) {
	var providers []generator.Provider
	if cfg.Generation.Provider == "openai" {
		p, err := generator.NewOpenAIProvider(generator.OpenAIConfig{
			APIKey:     cfg.Generation.OpenAIKey,
			Model:      cfg.Generation.OpenAIModel,
			BaseURL:    cfg.Generation.OpenAIBaseURL,
			MaxRetries: cfg.Generation.MaxRetries,
			RetryDelay: cfg.Generation.RetryDelay,
		}, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.Generation.Provider != "openai" || cfg.Generation.FallbackLocal {
		providers = append(providers, generator.NewLocalProvider())
	}
	return generator.NewChain(logger, providers...)
}
