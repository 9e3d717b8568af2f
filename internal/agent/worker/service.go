// Package worker implements the sync worker: it pops sync commands off
// the coordination service's queue and brings the targeted follower
// instance's database in line with its leader.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	agentapi "github.com/iudanet/flocksync/internal/agent/api"
	"github.com/iudanet/flocksync/internal/agent/leader"
	"github.com/iudanet/flocksync/internal/agent/localdb"
	"github.com/iudanet/flocksync/internal/agent/state"
	"github.com/iudanet/flocksync/pkg/api"
)

// Default credentials a freshly provisioned local instance accepts.
const (
	DefaultLocalUsername = "admin"
	DefaultLocalPassword = "adminA_1"
)

// Coordinator is the slice of the coordination-service client the worker
// uses.
type Coordinator interface {
	PopCommand(ctx context.Context) (*api.SyncCommand, error)
	CompleteCommand(ctx context.Context, id string) error
	GetInstance(ctx context.Context, id string) (*api.Instance, error)
}

// StateStore is the slice of the agent state store the worker uses.
type StateStore interface {
	GetSession(ctx context.Context, instanceID string) (state.Session, error)
	SaveSession(ctx context.Context, instanceID string, sess state.Session) error
	DeleteSession(ctx context.Context, instanceID string) error
	RegisterServer(ctx context.Context, server state.Server) error
}

// InstanceClient talks the instance sync protocol, against either a
// remote leader or the local follower service.
type InstanceClient interface {
	Login(ctx context.Context, username, password string) error
	SetToken(token string)
	Token() string
	LastModified(ctx context.Context) (leader.LastModified, error)
	FetchTables(ctx context.Context, tables map[string][]int) (leader.TableRows, error)
}

// Config carries the worker's tunables.
type Config struct {
	// DataDir holds the per-instance SQLite files, one <slug>.sqlite each.
	DataDir string
	// ServiceURL is the base URL of the local follower web service.
	ServiceURL string
	// PollInterval is the pause between queue polls and between commands.
	PollInterval time.Duration
	// BatchSize bounds how many row IDs one table fetch may carry.
	BatchSize int
	// LocalUsername and LocalPassword authenticate against local
	// follower instances.
	LocalUsername string
	LocalPassword string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.LocalUsername == "" {
		c.LocalUsername = DefaultLocalUsername
	}
	if c.LocalPassword == "" {
		c.LocalPassword = DefaultLocalPassword
	}
}

// Service is the sync worker.
type Service struct {
	logger    *slog.Logger
	coord     Coordinator
	store     StateStore
	newClient func(baseURL string) InstanceClient
	cfg       Config
}

// NewService creates a sync worker.
func NewService(logger *slog.Logger, coord Coordinator, store StateStore, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		logger: logger,
		coord:  coord,
		store:  store,
		newClient: func(baseURL string) InstanceClient {
			return leader.NewClient(baseURL)
		},
		cfg: cfg,
	}
}

// Run polls the queue until ctx is cancelled. Every popped command is
// completed, whether its processing succeeded or not; errors are logged
// and the loop keeps going.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Sync worker started",
		"poll_interval", s.cfg.PollInterval, "data_dir", s.cfg.DataDir)

	for {
		cmd, err := s.coord.PopCommand(ctx)
		switch {
		case errors.Is(err, agentapi.ErrNoCommands):
			// Queue is empty, wait for the next poll.
		case err != nil:
			s.logger.Error("Failed to pop sync command", "error", err)
		default:
			s.handleCommand(ctx, cmd)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Sync worker stopping")
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// handleCommand processes one command and always completes it, so a
// failed sync never wedges the queue.
func (s *Service) handleCommand(ctx context.Context, cmd *api.SyncCommand) {
	defer func() {
		if err := s.coord.CompleteCommand(ctx, cmd.ID); err != nil {
			s.logger.Warn("Failed to complete sync command", "id", cmd.ID, "error", err)
		}
	}()

	s.logger.Info("Processing sync command", "id", cmd.ID, "instance_id", cmd.InstanceID)
	if err := s.processCommand(ctx, cmd); err != nil {
		s.logger.Error("Sync command failed",
			"id", cmd.ID, "instance_id", cmd.InstanceID, "error", err)
	}
}

func (s *Service) processCommand(ctx context.Context, cmd *api.SyncCommand) error {
	inst, err := s.coord.GetInstance(ctx, cmd.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to resolve instance: %w", err)
	}
	localURL := s.cfg.ServiceURL + "/" + inst.Slug

	if err := s.ensureProvisioned(ctx, inst, localURL); err != nil {
		return err
	}

	// Nothing to sync with is not an error, the command just has no work.
	if !inst.AutoSync {
		s.logger.Debug("Instance is not set to auto-sync", "slug", inst.Slug)
		return nil
	}
	if inst.Leader == "" {
		s.logger.Debug("Instance has no leader", "slug", inst.Slug)
		return nil
	}

	leaderClient, err := s.leaderClient(ctx, inst)
	if err != nil {
		if errors.Is(err, leader.ErrAuthFailed) {
			s.logger.Warn("Unable to log in to leader",
				"slug", inst.Slug, "leader", inst.Leader)
			return nil
		}
		return err
	}

	// Sync state is moved only through explicit transition requests
	// against the coordination service, never as a side effect here.
	return s.sync(ctx, inst, localURL, leaderClient)
}

// ensureProvisioned creates the instance's local database file if it is
// missing and registers the instance with the front-end server list.
func (s *Service) ensureProvisioned(ctx context.Context, inst *api.Instance, localURL string) error {
	dbPath := s.dbPath(inst.Slug)
	if _, err := os.Stat(dbPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat local database: %w", err)
	}

	if err := os.MkdirAll(s.cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := localdb.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to provision instance %s: %w", inst.Slug, err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to provision instance %s: %w", inst.Slug, err)
	}

	if err := s.store.RegisterServer(ctx, state.Server{
		Name: inst.Name,
		URL:  localURL,
	}); err != nil {
		return fmt.Errorf("failed to register instance %s with front-end: %w", inst.Slug, err)
	}

	s.logger.Info("Provisioned local instance", "slug", inst.Slug, "db", dbPath)
	return nil
}

// leaderClient returns a client logged in to the instance's leader,
// reusing the cached session token when it is still valid.
func (s *Service) leaderClient(ctx context.Context, inst *api.Instance) (InstanceClient, error) {
	client := s.newClient(inst.Leader)

	if sess, err := s.store.GetSession(ctx, inst.ID); err == nil &&
		leader.TokenValid(sess.Token, time.Now()) {
		client.SetToken(sess.Token)
		return client, nil
	}

	if err := client.Login(ctx, inst.Username, inst.Password); err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(ctx, inst.ID, state.Session{
		Token:   client.Token(),
		SavedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to cache leader session", "slug", inst.Slug, "error", err)
	}
	return client, nil
}

// sync diffs the local instance against its leader and applies the
// changes to the local database.
func (s *Service) sync(ctx context.Context, inst *api.Instance, localURL string, leaderClient InstanceClient) error {
	localClient := s.newClient(localURL)
	if err := localClient.Login(ctx, s.cfg.LocalUsername, s.cfg.LocalPassword); err != nil {
		return fmt.Errorf("failed to log in to local instance %s: %w", inst.Slug, err)
	}

	localLastMod, err := localClient.LastModified(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch local last modified: %w", err)
	}
	leaderLastMod, err := leaderClient.LastModified(ctx)
	if err != nil {
		if errors.Is(err, leader.ErrAuthFailed) {
			// The cached session went stale server-side; next run logs in
			// from scratch.
			_ = s.store.DeleteSession(ctx, inst.ID)
		}
		return fmt.Errorf("failed to fetch leader last modified: %w", err)
	}

	diff := ComputeDiff(localLastMod, leaderLastMod)
	if diff.Empty() {
		s.logger.Debug("Instance already in sync", "slug", inst.Slug)
		return nil
	}
	s.logger.Info("Applying sync diff", "slug", inst.Slug,
		"delete_tables", len(diff.Delete),
		"add_tables", len(diff.Add),
		"update_tables", len(diff.Update))

	db, err := localdb.Open(ctx, s.dbPath(inst.Slug))
	if err != nil {
		return fmt.Errorf("failed to open local database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	for table, ids := range diff.Delete {
		if err := db.DeleteRows(ctx, table, ids); err != nil {
			return err
		}
	}

	if err := s.applyFetched(ctx, leaderClient, diff.Add, db.InsertRows); err != nil {
		return err
	}
	if err := s.applyFetched(ctx, leaderClient, diff.Update, db.UpdateRows); err != nil {
		return err
	}
	return nil
}

// applyFetched fetches the given row IDs from the leader in batches and
// applies each batch with apply (an insert or update method bound to the
// local database).
func (s *Service) applyFetched(
	ctx context.Context,
	leaderClient InstanceClient,
	tables map[string][]int,
	apply func(ctx context.Context, table string, rows []map[string]any) error,
) error {
	if len(tables) == 0 {
		return nil
	}
	for _, batch := range BatchTables(tables, s.cfg.BatchSize) {
		fetched, err := leaderClient.FetchTables(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to fetch table rows: %w", err)
		}
		for table, rowsByID := range fetched {
			if len(rowsByID) == 0 {
				continue
			}
			rows := make([]map[string]any, 0, len(rowsByID))
			for _, row := range rowsByID {
				rows = append(rows, row)
			}
			if err := apply(ctx, table, rows); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) dbPath(slug string) string {
	return filepath.Join(s.cfg.DataDir, slug+".sqlite")
}
