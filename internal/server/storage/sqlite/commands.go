package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/flocksync/internal/models"
	"github.com/iudanet/flocksync/internal/server/storage"
)

// EnqueueCommand enqueues a sync command for the instance. If a live
// command (acknowledged or not) already exists for the instance it is
// returned unchanged, which keeps the queue at one in-flight command per
// instance without any locking.
func (s *Storage) EnqueueCommand(ctx context.Context, instanceID string) (models.SyncCommand, bool, error) {
	now := nowNanos()

	row := s.db.QueryRowContext(ctx,
		`SELECT history_id, instance_id, acked, start FROM sync_commands
		 WHERE instance_id = ? AND "end" > ?
		 ORDER BY start ASC LIMIT 1`,
		instanceID, now,
	)
	existing, err := scanCommand(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrCommandNotFound) {
		return models.SyncCommand{}, false, err
	}

	cmd := models.SyncCommand{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		Acked:      false,
		Start:      time.Unix(0, now).UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_commands (uuid, history_id, instance_id, acked, start, "end")
		 VALUES (?, ?, ?, 0, ?, ?)`,
		uuid.New().String(), cmd.ID, cmd.InstanceID, now, maxEnd,
	); err != nil {
		return models.SyncCommand{}, false, fmt.Errorf("failed to insert command: %w", err)
	}
	return cmd, true, nil
}

// ListCommands returns every live command, oldest first.
func (s *Storage) ListCommands(ctx context.Context) ([]models.SyncCommand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT history_id, instance_id, acked, start FROM sync_commands
		 WHERE "end" > ? ORDER BY start ASC`,
		nowNanos(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var commands []models.SyncCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return commands, nil
}

// PopCommand acknowledges and returns the oldest live, unacknowledged
// command. The popped command stays in storage as a new acknowledged
// version until it is explicitly completed. Stale acknowledged commands
// are reclaimed first, so a worker crash between pop and complete cannot
// strand an instance forever.
func (s *Storage) PopCommand(ctx context.Context) (models.SyncCommand, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SyncCommand{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := nowNanos()

	if err := s.reclaimStale(ctx, tx, now); err != nil {
		return models.SyncCommand{}, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT history_id, instance_id, acked, start FROM sync_commands
		 WHERE "end" > ? AND acked = 0
		 ORDER BY start ASC LIMIT 1`,
		now,
	)
	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, storage.ErrCommandNotFound) {
			return models.SyncCommand{}, storage.ErrNoCommands
		}
		return models.SyncCommand{}, err
	}

	if err := s.versionCommand(ctx, tx, cmd, now, true); err != nil {
		return models.SyncCommand{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.SyncCommand{}, fmt.Errorf("failed to commit: %w", err)
	}

	cmd.Acked = true
	cmd.Start = time.Unix(0, now).UTC()
	return cmd, nil
}

// CompleteCommand closes the live acknowledged command's window.
func (s *Storage) CompleteCommand(ctx context.Context, id string) (models.SyncCommand, error) {
	now := nowNanos()

	row := s.db.QueryRowContext(ctx,
		`SELECT history_id, instance_id, acked, start FROM sync_commands
		 WHERE history_id = ? AND "end" > ? AND acked = 1`,
		id, now,
	)
	cmd, err := scanCommand(row)
	if err != nil {
		return models.SyncCommand{}, err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE sync_commands SET "end" = ? WHERE history_id = ? AND "end" > ?`,
		now, id, now,
	); err != nil {
		return models.SyncCommand{}, fmt.Errorf("failed to complete command: %w", err)
	}
	return cmd, nil
}

// reclaimStale re-opens acknowledged commands older than the reclaim
// age: the live acked version is closed and replaced with a fresh
// unacknowledged one, making the work poppable again.
func (s *Storage) reclaimStale(ctx context.Context, tx *sql.Tx, now int64) error {
	cutoff := now - s.reclaimAfter.Nanoseconds()

	rows, err := tx.QueryContext(ctx,
		`SELECT history_id, instance_id, acked, start FROM sync_commands
		 WHERE "end" > ? AND acked = 1 AND start < ?`,
		now, cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to query stale commands: %w", err)
	}
	var stale []models.SyncCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return err
		}
		stale = append(stale, cmd)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("rows iteration error: %w", err)
	}
	rows.Close()

	for _, cmd := range stale {
		if err := s.versionCommand(ctx, tx, cmd, now, false); err != nil {
			return err
		}
	}
	return nil
}

// versionCommand closes the live row for cmd and inserts a new version
// with the given acked flag.
func (s *Storage) versionCommand(ctx context.Context, tx *sql.Tx, cmd models.SyncCommand, now int64, acked bool) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_commands SET "end" = ? WHERE history_id = ? AND "end" > ?`,
		now, cmd.ID, now,
	); err != nil {
		return fmt.Errorf("failed to close command version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_commands (uuid, history_id, instance_id, acked, start, "end")
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), cmd.ID, cmd.InstanceID, boolToInt(acked), now, maxEnd,
	); err != nil {
		return fmt.Errorf("failed to insert command version: %w", err)
	}
	return nil
}

func scanCommand(row scanner) (models.SyncCommand, error) {
	var cmd models.SyncCommand
	var acked int
	var start int64

	err := row.Scan(&cmd.ID, &cmd.InstanceID, &acked, &start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncCommand{}, storage.ErrCommandNotFound
		}
		return models.SyncCommand{}, fmt.Errorf("failed to scan command: %w", err)
	}

	cmd.Acked = intToBool(acked)
	cmd.Start = time.Unix(0, start).UTC()
	return cmd, nil
}
