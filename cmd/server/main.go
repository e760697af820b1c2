package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/polyglot/internal/adapters/cache"
	router "github.com/dkeye/polyglot/internal/adapters/http"
	sig "github.com/dkeye/polyglot/internal/adapters/signal"
	"github.com/dkeye/polyglot/internal/adapters/store"
	"github.com/dkeye/polyglot/internal/adapters/translate"
	"github.com/dkeye/polyglot/internal/app"
	"github.com/dkeye/polyglot/internal/app/chat"
	"github.com/dkeye/polyglot/internal/app/orch"
	"github.com/dkeye/polyglot/internal/config"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(cfg.DatabaseDSN, cfg.Mode == "debug")
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	accounts := store.NewDirectory(db)
	general, err := accounts.EnsureGeneralRoom(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("room", string(general.ID)).Msg("general room ready")

	var directory core.Directory = accounts
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, directory cache disabled")
		} else {
			defer client.Close()
			directory = cache.NewDirectory(accounts, client, "polyglot:", cfg.CacheTTL)
		}
	}

	var translator core.Translator = translate.Disabled{}
	if cfg.TranslateURL != "" {
		translator = translate.NewClient(cfg.TranslateURL, cfg.TranslateAPIKey, cfg.TranslateTimeout)
	}

	collector := metrics.NewPrometheusCollector()
	rooms := app.NewRoomRegistry()
	publisher := chat.NewPublisher(rooms, directory, translator, store.NewMessageLog(db), collector, chat.Options{
		TranslateTimeout: cfg.TranslateTimeout,
		LookupTimeout:    cfg.LookupTimeout,
		Concurrency:      cfg.TranslateConcurrency,
	})
	// Runs before the deferred redis and database closes above.
	defer publisher.Close()

	policy, err := app.NewPolicy(cfg.SlowConsumer)
	if err != nil {
		return err
	}
	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     rooms,
		Calls:     app.NewCallBook(),
		Chat:      publisher,
		Directory: directory,
		Policy:    policy,
		Metrics:   collector,
	}

	ctl := sig.NewSignalWSController(o, sig.NewRoomRateLimiter(cfg.MessageRate, cfg.MessageBurst), sig.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
		ICEServers: cfg.WebRTCICEServers(),
	})

	r := router.SetupRouter(ctx, cfg, o, accounts, ctl, collector)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Polyglot server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}
