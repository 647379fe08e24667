// vidmerge/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"vidmerge/api"
	"vidmerge/config"
	"vidmerge/ffmpeg"
	"vidmerge/merge"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "vidmerge").
		Logger()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	for _, dir := range []string{cfg.OutputDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Str("dir", dir).Err(err).Msg("failed to create directory")
		}
	}

	// A missing encoder is not fatal here: jobs will classify it properly,
	// but the operator should see the problem at boot.
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		logger.Warn().Str("bin", cfg.FFBin).Msg("encoder binary not found in PATH")
	}

	// 2. Initialize the encoder runner and the merge service
	runner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize encoder runner")
	}

	svc, err := merge.NewService(cfg, runner, logger, os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize merge service")
	}

	// 3. Set up router and server
	router := api.SetupRouter(svc, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 4. Start background sweeper and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	merge.NewSweeper(cfg, logger).Start(ctx)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()

	// 5. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()
	logger.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exiting")
}
