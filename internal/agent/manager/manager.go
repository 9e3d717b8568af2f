// Package manager implements the sync manager: a loop that keeps a live
// sync command queued for every auto-syncing instance.
package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/flocksync/pkg/api"
)

// Coordinator is the slice of the coordination-service client the
// manager uses.
type Coordinator interface {
	ListInstances(ctx context.Context) ([]api.Instance, error)
	ListCommands(ctx context.Context) ([]api.SyncCommand, error)
	EnqueueCommand(ctx context.Context, instanceID string) (*api.SyncCommand, error)
}

// Service is the sync manager.
type Service struct {
	logger   *slog.Logger
	coord    Coordinator
	interval time.Duration
}

// NewService creates a sync manager polling at the given interval.
func NewService(logger *slog.Logger, coord Coordinator, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Service{
		logger:   logger,
		coord:    coord,
		interval: interval,
	}
}

// Run enqueues commands until ctx is cancelled. Errors are logged and
// the loop keeps going; a transiently unreachable service costs one tick.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Sync manager started", "interval", s.interval)

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Sync manager stopping")
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// Tick runs one pass: every auto-syncing instance without a live command
// gets one enqueued.
func (s *Service) Tick(ctx context.Context) {
	commands, err := s.coord.ListCommands(ctx)
	if err != nil {
		s.logger.Error("Failed to list sync commands", "error", err)
		return
	}
	instances, err := s.coord.ListInstances(ctx)
	if err != nil {
		s.logger.Error("Failed to list instances", "error", err)
		return
	}

	queued := make(map[string]bool, len(commands))
	for _, cmd := range commands {
		queued[cmd.InstanceID] = true
	}

	for _, inst := range instances {
		if !inst.AutoSync || queued[inst.ID] {
			continue
		}
		cmd, err := s.coord.EnqueueCommand(ctx, inst.ID)
		if err != nil {
			s.logger.Error("Failed to enqueue sync command",
				"instance_id", inst.ID, "error", err)
			continue
		}
		s.logger.Info("Enqueued sync command",
			"id", cmd.ID, "instance_id", inst.ID, "slug", inst.Slug)
	}
}
