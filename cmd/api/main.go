package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/internal/api"
	"github.com/QTest-hq/apimap/internal/config"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

// setupLogging writes JSON in production and console output elsewhere
func setupLogging(cfg *config.Config, out io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Env == "production" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// newHTTPServer sizes the write timeout to the slowest extraction the
// router allows.
func newHTTPServer(cfg *config.Config, srv *api.Server) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      srv.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// run serves until ctx is cancelled, then drains in-flight scans
func run(ctx context.Context, cfg *config.Config) error {
	srv, err := api.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	httpServer := newHTTPServer(cfg, srv)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("env", cfg.Env).Msg("starting API server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("could not listen on port %d: %w", cfg.Port, err)
	case <-ctx.Done():
	}

	log.Info().Msg("server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	return nil
}
