package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabalyuk/advisorbot/bot"
	"github.com/iabalyuk/advisorbot/config"
	"github.com/iabalyuk/advisorbot/conversation"
	"github.com/iabalyuk/advisorbot/directory"
	"github.com/iabalyuk/advisorbot/metrics"
	"github.com/iabalyuk/advisorbot/storage"
	"github.com/iabalyuk/advisorbot/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	// Parse command-line flags
	debug := flag.Bool("debug", false, "Enable debug mode")
	token := flag.String("token", "", "Telegram bot token (or use TELEGRAM_BOT_TOKEN env var)")
	dump := flag.String("dump", "", "Write the whole directory to this JSON seed file and exit")
	flag.Parse()

	cfg, err := config.Load(config.Flags{Token: *token, Debug: *debug, Dump: *dump})
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := newLogger(cfg)

	if err := run(cfg, logger, openBackend); err != nil {
		logger.Fatal().Err(err).Msg("Bot failed")
	}
}

// backendOpener builds the configured directory backend and the func that
// releases it.
type backendOpener func(cfg *config.Config, logger zerolog.Logger) (directory.Backend, func(), error)

// run serves until SIGINT or SIGTERM, or performs the dump and returns. The
// backend is closed on every return path, so callers may exit on the error.
func run(cfg *config.Config, logger zerolog.Logger, open backendOpener) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	botMetrics := metrics.NewBotMetrics(registry)

	backend, closeBackend, err := open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize %s directory backend: %w", cfg.DirectoryBackend, err)
	}
	defer closeBackend()
	dir := directory.NewService(backend, cfg.DirectoryBackend, logger, botMetrics)

	if cfg.DumpPath != "" {
		if err := dumpDirectory(dir, cfg.DumpPath); err != nil {
			return fmt.Errorf("failed to dump directory: %w", err)
		}
		logger.Info().Str("path", cfg.DumpPath).Msg("Directory dumped")
		return nil
	}

	machine := conversation.NewMachine(dir, logger, conversation.WithLocation(cfg.Location))

	// Queued events are allowed to finish after shutdown starts, so the
	// dispatcher does not share the bot's context.
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{Log: logger})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	telegramBot, err := bot.New(bot.Config{
		Token:      cfg.TelegramToken,
		Endpoint:   cfg.TelegramAPIEndpoint,
		Debug:      cfg.Debug,
		Handler:    machine,
		Dispatcher: dispatcher,
		Metrics:    botMetrics,
		Log:        logger,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr: cfg.MetricsAddr,
			Handler: metrics.NewRouter(registry, func() map[string]any {
				return map[string]any{
					"backend":      cfg.DirectoryBackend,
					"sessions":     machine.Sessions(),
					"active_users": dispatcher.Active(),
				}
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server started")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	// Start the bot in a separate goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	botErr := make(chan error, 1)
	go func() {
		botErr <- telegramBot.Start(ctx)
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case receivedSignal := <-sigCh:
		logger.Info().Stringer("signal", receivedSignal).Msg("Initiating graceful shutdown...")
	case err := <-botErr:
		if err != nil {
			return fmt.Errorf("failed to start bot: %w", err)
		}
	}

	cancel()
	dispatcher.Stop()
	logger.Info().Msg("Bot stopped")
	return nil
}

// newLogger writes JSON to stdout, or human-readable output in debug mode.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

// openBackend builds the configured directory backend. The returned func
// releases it.
func openBackend(cfg *config.Config, logger zerolog.Logger) (directory.Backend, func(), error) {
	noop := func() {}

	switch cfg.DirectoryBackend {
	case config.BackendSupabase:
		client := directory.NewSupabaseClient(directory.SupabaseConfig{
			BaseURL:   cfg.SupabaseURL,
			APIKey:    cfg.SupabaseKey,
			Table:     cfg.SupabaseTable,
			Timeout:   cfg.DirectoryTimeout,
			RateLimit: cfg.DirectoryRateLimit,
		}, logger)
		return client, noop, nil

	case config.BackendSQLite:
		db, err := storage.NewSQLite(cfg.DBPath, logger)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close database")
			}
		}
		if cfg.SeedPath != "" {
			advisors, err := storage.LoadSeed(cfg.SeedPath)
			if err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.DirectoryTimeout)
				err = db.Import(ctx, advisors)
				cancel()
			}
			if err != nil {
				closeDB()
				return nil, noop, fmt.Errorf("failed to seed %s: %w", cfg.DBPath, err)
			}
		}
		return db, closeDB, nil

	case config.BackendMemory:
		advisors, err := storage.LoadSeed(cfg.SeedPath)
		if err != nil {
			return nil, noop, err
		}
		mem := storage.NewMemory()
		mem.Replace(advisors)
		logger.Info().Int("count", mem.Len()).Str("seed", cfg.SeedPath).Msg("Loaded in-memory directory")
		return mem, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown directory backend %q", cfg.DirectoryBackend)
}

// dumpDirectory exports every advisor to a seed file.
func dumpDirectory(dir *directory.Service, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	advisors, err := dir.Lookup(ctx, "")
	if err != nil {
		return err
	}
	return storage.SaveSeed(path, advisors)
}
