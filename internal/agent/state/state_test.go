package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.GetSession(ctx, "inst-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := Session{Token: "tok-abc", SavedAt: time.Now().UTC()}
	require.NoError(t, s.SaveSession(ctx, "inst-1", sess))

	got, err := s.GetSession(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", got.Token)

	// Sessions are per instance.
	_, err = s.GetSession(ctx, "inst-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.DeleteSession(ctx, "inst-1"))
	_, err = s.GetSession(ctx, "inst-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is fine.
	require.NoError(t, s.DeleteSession(ctx, "inst-1"))
}

func TestLogHead(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	head, err := s.LogHead(ctx)
	require.NoError(t, err)
	assert.Empty(t, head, "fresh store has no recorded head")

	require.NoError(t, s.SaveLogHead(ctx, "abc123"))

	head, err = s.LogHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", head)
}

func TestServers(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	servers, err := s.ListServers(ctx)
	require.NoError(t, err)
	assert.Empty(t, servers)

	require.NoError(t, s.RegisterServer(ctx, Server{Name: "oka", URL: "http://127.0.0.1:5679/oka"}))
	require.NoError(t, s.RegisterServer(ctx, Server{Name: "bla", URL: "http://127.0.0.1:5679/bla"}))

	// Re-registering the same name updates rather than duplicates.
	require.NoError(t, s.RegisterServer(ctx, Server{Name: "oka", URL: "http://127.0.0.1:6000/oka"}))

	servers, err = s.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "bla", servers[0].Name)
	assert.Equal(t, "http://127.0.0.1:6000/oka", servers[1].URL)
}
