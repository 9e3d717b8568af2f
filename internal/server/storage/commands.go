package storage

import (
	"context"

	"github.com/iudanet/flocksync/internal/models"
)

// CommandStorage persists the per-instance sync command queue. Commands
// follow the same versioned-row pattern as instance records: popping a
// command inserts an acknowledged version, completing it closes the
// window. At most one live command exists per instance.
type CommandStorage interface {
	// EnqueueCommand enqueues a sync command for the instance. If a live
	// command already exists it is returned unchanged; the second return
	// value reports whether a new command was created.
	EnqueueCommand(ctx context.Context, instanceID string) (models.SyncCommand, bool, error)

	// ListCommands returns every live command, acknowledged or not,
	// oldest first.
	ListCommands(ctx context.Context) ([]models.SyncCommand, error)

	// PopCommand acknowledges and returns the oldest live,
	// unacknowledged command (FIFO by creation time). Returns
	// ErrNoCommands when the queue is empty. Acknowledged commands whose
	// worker apparently died are reclaimed (re-opened) first.
	PopCommand(ctx context.Context) (models.SyncCommand, error)

	// CompleteCommand closes the live acknowledged command's window so
	// it is no longer live. Returns ErrCommandNotFound if there is none.
	CompleteCommand(ctx context.Context, id string) (models.SyncCommand, error)
}
