package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/internal/agent/manager"
	"github.com/iudanet/flocksync/internal/agent/state"
	"github.com/iudanet/flocksync/internal/agent/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync manager and sync worker loops",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newAPIClient(configFile)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.GetString(cfgKeyLogLevel))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := state.New(ctx, cfg.GetString(cfgKeyStateDB))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close state store", "error", err)
			}
		}()

		mgr := manager.NewService(logger, client, cfg.GetDuration(cfgKeyManagerInterval))
		wrk := worker.NewService(logger, client, store, worker.Config{
			DataDir:       cfg.GetString(cfgKeyDataDir),
			ServiceURL:    cfg.GetString(cfgKeyServiceURL),
			PollInterval:  cfg.GetDuration(cfgKeyWorkerInterval),
			BatchSize:     cfg.GetInt(cfgKeyBatchSize),
			LocalUsername: cfg.GetString(cfgKeyLocalUsername),
			LocalPassword: cfg.GetString(cfgKeyLocalPassword),
		})

		logger.Info("Agent starting",
			"server", cfg.GetString(cfgKeyServerURL), "version", Version)

		errCh := make(chan error, 2)
		go func() { errCh <- mgr.Run(ctx) }()
		go func() { errCh <- wrk.Run(ctx) }()

		// Both loops only return on context cancellation.
		err = <-errCh
		<-errCh
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
