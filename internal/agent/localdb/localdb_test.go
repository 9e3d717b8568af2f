package localdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	d, err := Open(ctx, filepath.Join(t.TempDir(), "oka.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, d.Close())
	})

	_, err = d.db.ExecContext(ctx, `
		CREATE TABLE form (
			id INTEGER PRIMARY KEY,
			transcription TEXT,
			datetime_modified TEXT,
			date_elicited TEXT
		);
		CREATE TABLE user (
			id INTEGER PRIMARY KEY,
			username TEXT,
			password TEXT,
			salt TEXT
		);
	`)
	require.NoError(t, err)
	return d
}

func (d *DB) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, d.db.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestColumns(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	columns, err := d.Columns(ctx, "form")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "transcription", "datetime_modified", "date_elicited"}, columns)

	_, err = d.Columns(ctx, "missing")
	assert.Error(t, err)

	_, err = d.Columns(ctx, `form"; DROP TABLE form; --`)
	assert.Error(t, err)
}

func TestInsertRows(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	err := d.InsertRows(ctx, "form", []map[string]any{
		{
			"id":                1,
			"transcription":     "oka",
			"datetime_modified": "2026-08-01T10:30:00.000000",
			"date_elicited":     "2026-07-15",
			"not_a_column":      "dropped silently",
		},
		{
			"id":                2,
			"transcription":     "bla",
			"datetime_modified": "2026-08-02T11:00:00.000000",
			"date_elicited":     nil,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.countRows(t, "form"))

	var modified string
	require.NoError(t, d.db.QueryRow(
		`SELECT datetime_modified FROM form WHERE id = 1`).Scan(&modified))
	assert.Equal(t, "2026-08-01 10:30:00", modified, "wire datetime is rewritten to stored form")
}

func TestInsertRows_BadDatetimeAborts(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	err := d.InsertRows(ctx, "form", []map[string]any{
		{"id": 1, "transcription": "good", "datetime_modified": "2026-08-01T10:30:00.000000"},
		{"id": 2, "transcription": "bad", "datetime_modified": "yesterday-ish"},
	})
	require.Error(t, err)
	assert.Equal(t, 0, d.countRows(t, "form"), "failed batch rolls back whole transaction")
}

func TestInsertRows_StripsUserCredentials(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	err := d.InsertRows(ctx, "user", []map[string]any{
		{"id": 1, "username": "admin", "password": "leaderhash", "salt": "leadersalt"},
	})
	require.NoError(t, err)

	var password, salt any
	require.NoError(t, d.db.QueryRow(
		`SELECT password, salt FROM user WHERE id = 1`).Scan(&password, &salt))
	assert.Nil(t, password)
	assert.Nil(t, salt)
}

func TestUpdateRows(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	require.NoError(t, d.InsertRows(ctx, "form", []map[string]any{
		{"id": 1, "transcription": "old"},
	}))

	err := d.UpdateRows(ctx, "form", []map[string]any{
		{"id": 1, "transcription": "new", "datetime_modified": "2026-08-03T09:00:00.000000"},
	})
	require.NoError(t, err)

	var transcription string
	require.NoError(t, d.db.QueryRow(
		`SELECT transcription FROM form WHERE id = 1`).Scan(&transcription))
	assert.Equal(t, "new", transcription)

	err = d.UpdateRows(ctx, "form", []map[string]any{{"transcription": "no id"}})
	assert.Error(t, err)
}

func TestDeleteRows(t *testing.T) {
	ctx := context.Background()
	d := setupTestDB(t)

	require.NoError(t, d.InsertRows(ctx, "form", []map[string]any{
		{"id": 1, "transcription": "a"},
		{"id": 2, "transcription": "b"},
		{"id": 3, "transcription": "c"},
	}))

	require.NoError(t, d.DeleteRows(ctx, "form", []int{1, 3}))
	assert.Equal(t, 1, d.countRows(t, "form"))

	require.NoError(t, d.DeleteRows(ctx, "form", nil), "empty delete is a no-op")
}
