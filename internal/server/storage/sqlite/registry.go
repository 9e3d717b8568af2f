package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/flocksync/internal/models"
)

// Default URLs for the singleton registry records, used when a record is
// read before it was ever written.
const (
	DefaultAppURL     = "http://127.0.0.1:5678"
	DefaultServiceURL = "http://127.0.0.1:5679"
)

// GetApp returns the live front-end app record, creating it with the
// default URL when missing.
func (s *Storage) GetApp(ctx context.Context) (models.App, error) {
	id, url, err := s.getSingleton(ctx, "apps", DefaultAppURL)
	if err != nil {
		return models.App{}, err
	}
	return models.App{ID: id, URL: url}, nil
}

// UpdateApp versions the app record with a new URL.
func (s *Storage) UpdateApp(ctx context.Context, url string) (models.App, error) {
	if _, err := s.GetApp(ctx); err != nil {
		return models.App{}, err
	}
	id, err := s.updateSingleton(ctx, "apps", url)
	if err != nil {
		return models.App{}, err
	}
	return models.App{ID: id, URL: url}, nil
}

// GetService returns the live follower web-service record, creating it
// with the default URL when missing.
func (s *Storage) GetService(ctx context.Context) (models.Service, error) {
	id, url, err := s.getSingleton(ctx, "services", DefaultServiceURL)
	if err != nil {
		return models.Service{}, err
	}
	return models.Service{ID: id, URL: url}, nil
}

// UpdateService versions the service record with a new URL.
func (s *Storage) UpdateService(ctx context.Context, url string) (models.Service, error) {
	if _, err := s.GetService(ctx); err != nil {
		return models.Service{}, err
	}
	id, err := s.updateSingleton(ctx, "services", url)
	if err != nil {
		return models.Service{}, err
	}
	return models.Service{ID: id, URL: url}, nil
}

// getSingleton reads the live row of a singleton table, inserting one
// with the default URL if none exists.
func (s *Storage) getSingleton(ctx context.Context, table, defaultURL string) (string, string, error) {
	now := nowNanos()

	var id, url string
	err := s.db.QueryRowContext(ctx,
		`SELECT history_id, url FROM `+table+` WHERE "end" > ? ORDER BY start ASC LIMIT 1`,
		now,
	).Scan(&id, &url)
	if err == nil {
		return id, url, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("failed to query %s: %w", table, err)
	}

	id = uuid.New().String()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (uuid, history_id, url, start, "end") VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), id, defaultURL, now, maxEnd,
	); err != nil {
		return "", "", fmt.Errorf("failed to insert default %s row: %w", table, err)
	}
	return id, defaultURL, nil
}

// updateSingleton closes the live row and inserts a new version carrying
// the same history ID and the new URL.
func (s *Storage) updateSingleton(ctx context.Context, table, url string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := nowNanos()

	var id string
	if err := tx.QueryRowContext(ctx,
		`SELECT history_id FROM `+table+` WHERE "end" > ? ORDER BY start ASC LIMIT 1`,
		now,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET "end" = ? WHERE "end" > ?`,
		now, now,
	); err != nil {
		return "", fmt.Errorf("failed to close %s version: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (uuid, history_id, url, start, "end") VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), id, url, now, maxEnd,
	); err != nil {
		return "", fmt.Errorf("failed to insert %s version: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}
