package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/flocksync/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()
	ctx := context.Background()

	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	return s, func() {
		require.NoError(t, s.Close())
	}
}

func createTestInstance(t *testing.T, ctx context.Context, s *Storage, slug string) models.Instance {
	t.Helper()
	inst, err := s.CreateInstance(ctx, models.Instance{
		Slug:     slug,
		URL:      "http://127.0.0.1:5679/" + slug,
		AutoSync: true,
	})
	require.NoError(t, err)
	return inst
}

// countVersions returns the number of stored row versions for a history ID.
func countVersions(t *testing.T, ctx context.Context, s *Storage, table, id string) int {
	t.Helper()
	var n int
	err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE history_id = ?`, id,
	).Scan(&n)
	require.NoError(t, err)
	return n
}
