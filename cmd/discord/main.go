package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "aoi/internal/command/chat"
	_ "aoi/internal/command/help"
	_ "aoi/internal/command/permissions"
	_ "aoi/internal/command/settings"

	"aoi/internal/config"
	"aoi/internal/discord"
	"aoi/internal/httpapi"
	"aoi/internal/logging"
	"aoi/internal/metrics"
	"aoi/internal/state"
	"aoi/internal/storage"
	"aoi/internal/version"
	"aoi/pkg/cmd"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log, closer := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("bot exited with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Bool("env_file", envLoaded).Msg("bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("version", version.String()).Msg("starting bot")
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.StorageDriver,
		Path:          cfg.StoragePath,
		DSN:           cfg.DatabaseURL,
		DefaultPrefix: cfg.DefaultPrefix,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	st := state.New(ctx, store, log, state.Options{DefaultPrefix: cfg.DefaultPrefix, Metrics: m})
	defer st.Close()
	if err := st.Load(ctx); err != nil {
		return err
	}

	bot, err := discord.New(cfg, st, cmd.DefaultRegistry, m, log)
	if err != nil {
		return err
	}

	botDone := make(chan error, 1)
	go func() { botDone <- bot.Run(ctx) }()

	httpDone := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := httpapi.New(cfg.HTTPAddr, st, cmd.DefaultRegistry, m, log)
		go func() { httpDone <- srv.Run(ctx) }()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		return <-botDone
	case err := <-httpDone:
		cancel()
		<-botDone
		return err
	case err := <-botDone:
		return err
	}
}
