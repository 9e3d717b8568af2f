// Package state implements the agent's local store: cached leader
// session tokens, the last observed fact-log head and the registry of
// front-end servers the agent has provisioned.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSessions = []byte("sessions")
	bucketLog      = []byte("log")
	bucketServers  = []byte("servers")

	headKey = []byte("head")
)

// ErrSessionNotFound means no session token is cached for the instance.
var ErrSessionNotFound = errors.New("session not found")

// Session is a cached leader session token for one instance.
type Session struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// Server is a registered front-end server entry.
type Server struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Store is the bbolt-backed agent state store.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the state database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	store := &Store{db: db}
	if err := store.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSessions, bucketLog, bucketServers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// SaveSession caches a leader session token for the instance.
func (s *Store) SaveSession(ctx context.Context, instanceID string, sess Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		if err := tx.Bucket(bucketSessions).Put([]byte(instanceID), data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetSession returns the cached session for the instance, or
// ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, instanceID string) (Session, error) {
	var sess Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(instanceID))
		if data == nil {
			return ErrSessionNotFound
		}
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// DeleteSession drops the cached session for the instance. Deleting a
// session that does not exist is not an error.
func (s *Store) DeleteSession(ctx context.Context, instanceID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSessions).Delete([]byte(instanceID)); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

// SaveLogHead records the chain hash of the last fact-log entry the
// agent has seen.
func (s *Store) SaveLogHead(ctx context.Context, head string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketLog).Put(headKey, []byte(head)); err != nil {
			return fmt.Errorf("failed to save log head: %w", err)
		}
		return nil
	})
}

// LogHead returns the last recorded fact-log head, or the empty string
// when the agent has never seen the log.
func (s *Store) LogHead(ctx context.Context) (string, error) {
	var head string
	err := s.db.View(func(tx *bbolt.Tx) error {
		head = string(tx.Bucket(bucketLog).Get(headKey))
		return nil
	})
	if err != nil {
		return "", err
	}
	return head, nil
}

// RegisterServer adds or updates a front-end server entry keyed by name.
func (s *Store) RegisterServer(ctx context.Context, server Server) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(server)
		if err != nil {
			return fmt.Errorf("failed to marshal server: %w", err)
		}
		if err := tx.Bucket(bucketServers).Put([]byte(server.Name), data); err != nil {
			return fmt.Errorf("failed to register server: %w", err)
		}
		return nil
	})
}

// ListServers returns every registered front-end server, ordered by name.
func (s *Store) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketServers).ForEach(func(k, v []byte) error {
			var server Server
			if err := json.Unmarshal(v, &server); err != nil {
				return fmt.Errorf("failed to unmarshal server %s: %w", k, err)
			}
			servers = append(servers, server)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return servers, nil
}
