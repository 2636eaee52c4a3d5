package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkovalev/logsentry-bot/internal/ai"
	"github.com/dkovalev/logsentry-bot/internal/analyzer"
	"github.com/dkovalev/logsentry-bot/internal/bot"
	"github.com/dkovalev/logsentry-bot/internal/config"
	"github.com/dkovalev/logsentry-bot/internal/filter"
	"github.com/dkovalev/logsentry-bot/internal/logging"
	"github.com/dkovalev/logsentry-bot/internal/metrics"
	"github.com/dkovalev/logsentry-bot/internal/storage"
	"github.com/dkovalev/logsentry-bot/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.ParseCLI()

	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	if cli.ShowVersion {
		fmt.Printf("logsentry-bot %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     "./logs",
		Filename:   "bot.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    true,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Str("version", version).Msg("Starting logsentry bot")

	if err := runBot(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Bot terminated with error")
		return exitFailure
	}

	log.Info().Msg("Shutdown complete")
	return exitSuccess
}

func runBot(ctx context.Context, cfg *config.Config, log *logging.SecureLogger) error {
	// 1. Filter configuration (created with defaults on first run)
	filters, err := filter.Load(cfg.FiltersPath)
	if err != nil {
		return fmt.Errorf("failed to load filter configuration: %w", err)
	}
	log.Info().
		Str("path", filters.Path()).
		Int("rules", len(filters.Rules())).
		Int("active", len(filters.ActiveFilters())).
		Msg("Filter configuration loaded")

	// 2. Upload bookkeeping (optional)
	var store *storage.Storage
	if cfg.EnableDatabase {
		store, err = storage.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func(store *storage.Storage) {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}(store)
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")

		if deleted, err := store.CleanupOldUploads(90); err != nil {
			log.Warn().Err(err).Msg("Failed to cleanup old uploads")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Msg("Old upload records cleaned up")
		}
	}

	// 3. Analysis worker pool
	dispatcher := analyzer.NewDispatcher(cfg.AnalyzeWorkers, cfg.AnalyzeQueue)
	defer dispatcher.Close()
	log.Info().
		Int("workers", cfg.AnalyzeWorkers).
		Int("queue", cfg.AnalyzeQueue).
		Msg("Analysis dispatcher started")

	// 4. Optional AI summarizer
	var summarizer *ai.Client
	if cfg.HasAI() {
		summarizer, err = ai.NewClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, cfg.AITimeoutSeconds, cfg.AIMaxTokens)
		if err != nil {
			return fmt.Errorf("failed to initialize AI client: %w", err)
		}
		log.Info().Str("model", summarizer.Model()).Msg("AI summarizer enabled")
	}

	// 5. Metrics
	met := metrics.New()
	if cfg.HasMetrics() {
		srv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Warn().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics listener stopped")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics listener started")
	}

	// 6. Telegram transport
	tg, err := bot.New(bot.Options{
		Token:      cfg.TelegramBotToken,
		Filters:    filters,
		Dispatcher: dispatcher,
		Store:      store,
		Summarizer: summarizer,
		Metrics:    met,
		Log:        log,
		UploadsDir: cfg.UploadsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info().Str("username", tg.Username()).Msg("Telegram bot initialized")

	return tg.Run(ctx)
}
