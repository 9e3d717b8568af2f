package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/flocksync/internal/models"
	"github.com/iudanet/flocksync/internal/server/storage"
)

func TestCreateInstance(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	inst := createTestInstance(t, ctx, s, "oka")
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, "oka", inst.Name, "name defaults to slug")
	assert.Equal(t, models.StateNotSynced, inst.State)

	got, err := s.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, inst, got)
}

func TestCreateInstance_RejectsBadSlug(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateInstance(ctx, models.Instance{Slug: "Not A Slug"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slug")
}

func TestCreateInstance_RejectsDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestInstance(t, ctx, s, "oka")
	_, err := s.CreateInstance(ctx, models.Instance{Slug: "oka"})
	assert.ErrorIs(t, err, storage.ErrSlugInUse)
}

func TestGetInstance_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetInstance(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrInstanceNotFound)
}

func TestListInstances(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestInstance(t, ctx, s, "oka")
	createTestInstance(t, ctx, s, "bla")

	instances, err := s.ListInstances(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "oka", instances[0].Slug)
	assert.Equal(t, "bla", instances[1].Slug)
}

func TestUpdateInstance_VersionsRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	inst := createTestInstance(t, ctx, s, "oka")

	leader := "https://leader.example.org/oka"
	updated, err := s.UpdateInstance(ctx, inst.ID, storage.InstanceUpdate{Leader: &leader})
	require.NoError(t, err)
	assert.Equal(t, inst.ID, updated.ID, "history ID is stable across versions")
	assert.Equal(t, leader, updated.Leader)
	assert.Equal(t, inst.Slug, updated.Slug)

	// The old version is retained, closed, alongside the new live one.
	assert.Equal(t, 2, countVersions(t, ctx, s, "instances", inst.ID))

	got, err := s.GetInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, leader, got.Leader)

	// Only the live version shows up in listings.
	instances, err := s.ListInstances(ctx)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestTransitionInstance(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	inst := createTestInstance(t, ctx, s, "oka")

	t.Run("legal edge versions the record", func(t *testing.T) {
		got, err := s.TransitionInstance(ctx, inst.ID, models.StateSyncing)
		require.NoError(t, err)
		assert.Equal(t, models.StateSyncing, got.State)
		assert.Equal(t, 2, countVersions(t, ctx, s, "instances", inst.ID))
	})

	t.Run("self transition is a no-op with zero writes", func(t *testing.T) {
		before := countVersions(t, ctx, s, "instances", inst.ID)
		got, err := s.TransitionInstance(ctx, inst.ID, models.StateSyncing)
		require.NoError(t, err)
		assert.Equal(t, models.StateSyncing, got.State)
		assert.Equal(t, before, countVersions(t, ctx, s, "instances", inst.ID))
	})

	t.Run("illegal edge leaves state unchanged", func(t *testing.T) {
		_, err := s.TransitionInstance(ctx, inst.ID, models.StateNotSynced)
		require.ErrorIs(t, err, models.ErrIllegalTransition)

		got, err := s.GetInstance(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateSyncing, got.State)
	})

	t.Run("unknown state is a validation error", func(t *testing.T) {
		_, err := s.TransitionInstance(ctx, inst.ID, "limbo")
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrIllegalTransition)
	})
}

func TestRegistry_Singletons(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	app, err := s.GetApp(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultAppURL, app.URL)

	// Reading again returns the same record, not a new one.
	again, err := s.GetApp(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.ID, again.ID)

	updated, err := s.UpdateApp(ctx, "http://127.0.0.1:9999")
	require.NoError(t, err)
	assert.Equal(t, app.ID, updated.ID)
	assert.Equal(t, "http://127.0.0.1:9999", updated.URL)
	assert.Equal(t, 2, countVersions(t, ctx, s, "apps", app.ID))

	svc, err := s.GetService(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultServiceURL, svc.URL)
}
