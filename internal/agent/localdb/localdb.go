// Package localdb applies sync changes directly to a follower instance's
// SQLite database: deletes by primary key, batched inserts and updates,
// with value and column preparation matching what the follower service
// expects to find on disk.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// identPattern is the shape a table or column name must have before it is
// interpolated into SQL. Names arrive from a remote response, so anything
// else is rejected outright.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Serialized forms matching the follower service's storage format.
const (
	wireDatetimeLayout   = "2006-01-02T15:04:05.999999"
	storedDatetimeLayout = "2006-01-02 15:04:05.999999"
	dateLayout           = "2006-01-02"
)

// DB wraps one follower instance's SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens the follower database at dbPath, creating the file if it
// does not exist yet.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite with WAL mode supports many readers but a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Columns returns the column names of table, in schema order.
func (d *DB) Columns(ctx context.Context, table string) ([]string, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", table, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return columns, nil
}

// DeleteRows deletes the rows of table with the given primary keys.
func (d *DB) DeleteRows(ctx context.Context, table string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := checkIdent(table); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM "%s" WHERE id IN (%s)`, table, placeholders)
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// InsertRows inserts the given rows into table inside one transaction.
// Row values are prepared first: columns unknown to the local schema are
// dropped and date/datetime strings are rewritten to the stored format.
func (d *DB) InsertRows(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	columns, err := d.Columns(ctx, table)
	if err != nil {
		return err
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			prepared, err := prepareRow(table, row, columns)
			if err != nil {
				return err
			}

			names := sortedKeys(prepared)
			quoted := make([]string, len(names))
			args := make([]any, len(names))
			for i, name := range names {
				quoted[i] = `"` + name + `"`
				args[i] = prepared[name]
			}

			query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
				table,
				strings.Join(quoted, ", "),
				strings.TrimSuffix(strings.Repeat("?,", len(names)), ","))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", table, err)
			}
		}
		return nil
	})
}

// UpdateRows rewrites the given rows of table by primary key inside one
// transaction. Every row must carry its id.
func (d *DB) UpdateRows(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	columns, err := d.Columns(ctx, table)
	if err != nil {
		return err
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			id, ok := row["id"]
			if !ok {
				return fmt.Errorf("row for table %s has no id", table)
			}
			prepared, err := prepareRow(table, row, columns)
			if err != nil {
				return err
			}
			delete(prepared, "id")

			names := sortedKeys(prepared)
			sets := make([]string, len(names))
			args := make([]any, 0, len(names)+1)
			for i, name := range names {
				sets[i] = fmt.Sprintf(`"%s" = ?`, name)
				args = append(args, prepared[name])
			}
			args = append(args, id)

			query := fmt.Sprintf(`UPDATE "%s" SET %s WHERE id = ?`,
				table, strings.Join(sets, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to update %s: %w", table, err)
			}
		}
		return nil
	})
}

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// prepareRow filters a fetched row down to the local schema and rewrites
// wire-format values into their stored form. The user table's password
// and salt columns never cross the sync boundary.
func prepareRow(table string, row map[string]any, columns []string) (map[string]any, error) {
	known := make(map[string]bool, len(columns))
	for _, col := range columns {
		known[col] = true
	}

	prepared := make(map[string]any, len(row))
	for name, value := range row {
		if !known[name] || !identPattern.MatchString(name) {
			continue
		}
		if table == "user" && (name == "password" || name == "salt") {
			continue
		}
		v, err := prepareValue(table, name, value)
		if err != nil {
			return nil, err
		}
		prepared[name] = v
	}
	return prepared, nil
}

// prepareValue rewrites datetime and date strings from their wire format
// into the locally stored format, keyed off the column name the same way
// the follower service names such columns.
func prepareValue(table, column string, value any) (any, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return value, nil
	}
	if strings.Contains(column, "datetime_") {
		parsed, err := time.Parse(wireDatetimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to parse value %q as datetime in table %s, column %s: %w",
				s, table, column, err)
		}
		return parsed.Format(storedDatetimeLayout), nil
	}
	if strings.Contains(column, "date_") {
		if _, err := time.Parse(dateLayout, s); err != nil {
			return nil, fmt.Errorf(
				"failed to parse value %q as date in table %s, column %s: %w",
				s, table, column, err)
		}
		return s, nil
	}
	return value, nil
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
