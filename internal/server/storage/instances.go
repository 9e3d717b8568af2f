// Package storage defines the coordination service's persistence
// interfaces. Records are versioned: a mutation never rewrites a row, it
// closes the live row's validity window and inserts a new version under
// the same history ID, so the full history of every record is retained.
package storage

import (
	"context"

	"github.com/iudanet/flocksync/internal/models"
)

// InstanceUpdate carries the fields that may change when versioning an
// instance record. Nil fields keep their current value. Slug and state
// are deliberately absent: the slug is immutable and state only moves
// through TransitionInstance.
type InstanceUpdate struct {
	Name     *string
	URL      *string
	Leader   *string
	Username *string
	Password *string
	AutoSync *bool
}

// InstanceStorage persists versioned follower-instance records. All IDs
// are history IDs: stable across versions of the same record.
type InstanceStorage interface {
	// CreateInstance validates and stores a new instance record.
	// Returns ErrSlugInUse if another live instance holds the slug.
	CreateInstance(ctx context.Context, inst models.Instance) (models.Instance, error)

	// GetInstance returns the live version of the record.
	// Returns ErrInstanceNotFound if there is none.
	GetInstance(ctx context.Context, id string) (models.Instance, error)

	// ListInstances returns the live version of every instance record.
	ListInstances(ctx context.Context) ([]models.Instance, error)

	// UpdateInstance closes the live version and inserts a new one with
	// the requested field changes applied.
	UpdateInstance(ctx context.Context, id string, upd InstanceUpdate) (models.Instance, error)

	// TransitionInstance attempts a sync-state transition. An edge not
	// in the allowed graph returns models.ErrIllegalTransition and
	// leaves the record untouched; a transition to the current state is
	// a no-op that performs no write.
	TransitionInstance(ctx context.Context, id string, to models.SyncState) (models.Instance, error)
}

// RegistryStorage persists the two singleton records describing the
// bundled front-end app and the local follower web service. Reading
// either creates it with its default URL when missing.
type RegistryStorage interface {
	GetApp(ctx context.Context) (models.App, error)
	UpdateApp(ctx context.Context, url string) (models.App, error)
	GetService(ctx context.Context) (models.Service, error)
	UpdateService(ctx context.Context, url string) (models.Service, error)
}
