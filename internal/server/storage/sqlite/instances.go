package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/flocksync/internal/models"
	"github.com/iudanet/flocksync/internal/server/storage"
)

const instanceColumns = `history_id, slug, name, url, leader, username, password, state, auto_sync`

// CreateInstance validates and stores a new instance record.
// Returns ErrSlugInUse if another live instance holds the slug.
func (s *Storage) CreateInstance(ctx context.Context, inst models.Instance) (models.Instance, error) {
	inst, err := models.NewInstance(inst)
	if err != nil {
		return models.Instance{}, err
	}

	now := nowNanos()

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM instances WHERE slug = ? AND "end" > ?`,
		inst.Slug, now,
	).Scan(&count)
	if err != nil {
		return models.Instance{}, fmt.Errorf("failed to check slug: %w", err)
	}
	if count > 0 {
		return models.Instance{}, storage.ErrSlugInUse
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (uuid, `+instanceColumns+`, start, "end")
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		inst.ID,
		inst.Slug,
		inst.Name,
		inst.URL,
		inst.Leader,
		inst.Username,
		inst.Password,
		string(inst.State),
		boolToInt(inst.AutoSync),
		now,
		maxEnd,
	)
	if err != nil {
		return models.Instance{}, fmt.Errorf("failed to insert instance: %w", err)
	}

	return inst, nil
}

// GetInstance returns the live version of the record with the given
// history ID.
func (s *Storage) GetInstance(ctx context.Context, id string) (models.Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE history_id = ? AND "end" > ?`,
		id, nowNanos(),
	)
	return scanInstance(row)
}

// ListInstances returns the live version of every instance record.
func (s *Storage) ListInstances(ctx context.Context) ([]models.Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE "end" > ? ORDER BY start ASC`,
		nowNanos(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var instances []models.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return instances, nil
}

// UpdateInstance closes the live version of the record and inserts a new
// version with the requested field changes applied. The slug and state
// are carried over unchanged.
func (s *Storage) UpdateInstance(ctx context.Context, id string, upd storage.InstanceUpdate) (models.Instance, error) {
	return s.versionInstance(ctx, id, func(inst *models.Instance) error {
		if upd.Name != nil {
			inst.Name = *upd.Name
		}
		if upd.URL != nil {
			inst.URL = *upd.URL
		}
		if upd.Leader != nil {
			inst.Leader = *upd.Leader
		}
		if upd.Username != nil {
			inst.Username = *upd.Username
		}
		if upd.Password != nil {
			inst.Password = *upd.Password
		}
		if upd.AutoSync != nil {
			inst.AutoSync = *upd.AutoSync
		}
		return nil
	})
}

// TransitionInstance attempts a sync-state transition. An illegal edge
// returns models.ErrIllegalTransition without touching the record; a
// transition to the current state is a no-op with zero writes.
func (s *Storage) TransitionInstance(ctx context.Context, id string, to models.SyncState) (models.Instance, error) {
	if err := models.ValidateState(to); err != nil {
		return models.Instance{}, err
	}

	current, err := s.GetInstance(ctx, id)
	if err != nil {
		return models.Instance{}, err
	}
	if current.State == to {
		return current, nil
	}
	if !current.State.CanTransition(to) {
		return models.Instance{}, fmt.Errorf("%w: %s -> %s",
			models.ErrIllegalTransition, current.State, to)
	}

	return s.versionInstance(ctx, id, func(inst *models.Instance) error {
		inst.State = to
		return nil
	})
}

// versionInstance closes the live row for id and inserts a new version
// produced by mutate, all inside one transaction.
func (s *Storage) versionInstance(ctx context.Context, id string, mutate func(*models.Instance) error) (models.Instance, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Instance{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := nowNanos()

	row := tx.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE history_id = ? AND "end" > ?`,
		id, now,
	)
	inst, err := scanInstance(row)
	if err != nil {
		return models.Instance{}, err
	}

	if err := mutate(&inst); err != nil {
		return models.Instance{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE instances SET "end" = ? WHERE history_id = ? AND "end" > ?`,
		now, id, now,
	); err != nil {
		return models.Instance{}, fmt.Errorf("failed to close instance version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO instances (uuid, `+instanceColumns+`, start, "end")
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		inst.ID,
		inst.Slug,
		inst.Name,
		inst.URL,
		inst.Leader,
		inst.Username,
		inst.Password,
		string(inst.State),
		boolToInt(inst.AutoSync),
		now,
		maxEnd,
	); err != nil {
		return models.Instance{}, fmt.Errorf("failed to insert instance version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Instance{}, fmt.Errorf("failed to commit: %w", err)
	}
	return inst, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (models.Instance, error) {
	var inst models.Instance
	var state string
	var autoSync int

	err := row.Scan(
		&inst.ID,
		&inst.Slug,
		&inst.Name,
		&inst.URL,
		&inst.Leader,
		&inst.Username,
		&inst.Password,
		&state,
		&autoSync,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Instance{}, storage.ErrInstanceNotFound
		}
		return models.Instance{}, fmt.Errorf("failed to scan instance: %w", err)
	}

	inst.State = models.SyncState(state)
	inst.AutoSync = intToBool(autoSync)
	return inst, nil
}
