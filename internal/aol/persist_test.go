package aol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "facts.log")
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	path := logPath(t)
	log := buildLog(t, 7)

	require.NoError(t, Persist(log, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log, loaded)
	assert.Equal(t, -1, Verify(loaded))
}

func TestPersist_Idempotent(t *testing.T) {
	path := logPath(t)
	log := buildLog(t, 5)

	require.NoError(t, Persist(log, path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Persist(log, path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "persisting twice must not duplicate entries")
}

func TestPersist_AppendsOnlySuffix(t *testing.T) {
	path := logPath(t)
	log := buildLog(t, 3)
	require.NoError(t, Persist(log, path))

	log = Append(log, testFact("e", "has-d", "d"))
	log = Append(log, testFact("e", "has-e", "e"))
	require.NoError(t, Persist(log, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log, loaded)
}

func TestPersist_DivergedFileTip(t *testing.T) {
	path := logPath(t)
	require.NoError(t, Persist(buildLog(t, 3), path))

	other := Log{}
	other = Append(other, testFact("z", "has-a", "1"))
	err := Persist(other, path)
	assert.ErrorIs(t, err, ErrHashNotFound)
}

func TestLoad_InitializesMissingFile(t *testing.T) {
	path := logPath(t)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// The file now exists and is empty.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	path := logPath(t)
	log := buildLog(t, 2)
	require.NoError(t, Persist(log, path))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log, loaded)
}
