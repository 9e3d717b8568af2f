package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/internal/server/handlers"
	"github.com/iudanet/flocksync/internal/server/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if err := cfg.BindPFlag(cfgKeyListen, cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("failed to bind listen flag: %w", err)
	}

	logger := newLogger(cfg.GetString(cfgKeyLogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.GetString(cfgKeyDBPath))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	logHandler, err := handlers.NewLogHandler(logger, cfg.GetString(cfgKeyLogPath))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.GetString(cfgKeyListen),
		Handler:           handlers.NewRouter(logger, store, logHandler, Version),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Coordination service listening",
			"addr", server.Addr,
			"db", cfg.GetString(cfgKeyDBPath),
			"aol", cfg.GetString(cfgKeyLogPath),
			"version", Version)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
