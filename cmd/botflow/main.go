package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/botflowhq/botflow/internal/api"
	"github.com/botflowhq/botflow/internal/engine"
	"github.com/botflowhq/botflow/internal/logging"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/internal/store"
	"github.com/botflowhq/botflow/internal/streaming"
	"github.com/botflowhq/botflow/internal/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("botflow exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}),
	))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	reg := registry.New()
	hub := streaming.NewMemoryHub()
	transcript := store.NewTranscriptLog(st.DB())

	eng, err := engine.New(reg, transcript, hub, logger, engine.Config{})
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Store:      st,
		Transcript: transcript,
		Engine:     eng,
		Hub:        hub,
		Registry:   reg,
		Validator:  validation.NewValidator(reg),
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("botflow listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
