package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/iudanet/flocksync/internal/aol"
)

// LogHandler serves the append-only fact log at the service root. The log
// lives in memory behind a mutex and every accepted merge is persisted to
// the JSON-lines file before the response goes out.
type LogHandler struct {
	logger *slog.Logger

	mu   sync.Mutex
	path string
	log  aol.Log
}

// NewLogHandler loads the fact log from path, creating an empty file if
// none exists yet.
func NewLogHandler(logger *slog.Logger, path string) (*LogHandler, error) {
	log, err := aol.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load fact log: %w", err)
	}
	if i := aol.Verify(log); i >= 0 {
		return nil, fmt.Errorf("fact log at %s has a broken chain at entry %d", path, i)
	}
	return &LogHandler{
		logger: logger,
		path:   path,
		log:    log,
	}, nil
}

// HandleLog serves GET and PUT on the service root.
func (h *LogHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(h.logger, w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPut:
		h.handleMerge(w, r)
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// handleGet returns the log's entries. With ?head=<chain hash> only the
// suffix after that entry is returned; an unknown head is a 404 telling
// the caller to refetch from scratch.
func (h *LogHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	head := r.URL.Query().Get("head")

	h.mu.Lock()
	suffix, err := aol.SuffixAfter(h.log, head)
	h.mu.Unlock()

	if err != nil {
		if errors.Is(err, aol.ErrHashNotFound) {
			writeError(h.logger, w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to compute log suffix", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, suffix)
}

// handleMerge merges the submitted log into the server's under the rebase
// strategy, persists the result, and answers with only the entries the
// submitter is missing.
func (h *LogHandler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var mergee aol.Log
	if err := json.NewDecoder(r.Body).Decode(&mergee); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if i := aol.Verify(mergee); i >= 0 {
		writeError(h.logger, w, http.StatusBadRequest,
			fmt.Sprintf("submitted log has a broken chain at entry %d", i))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	merged, err := aol.Merge(h.log, mergee, aol.StrategyRebase, false)
	if err != nil {
		h.logger.Error("Failed to merge submitted log", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	diff, err := aol.Merge(h.log, mergee, aol.StrategyRebase, true)
	if err != nil {
		h.logger.Error("Failed to diff submitted log", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := aol.Persist(merged, h.path); err != nil {
		// The in-memory log is left untouched so a retry can succeed.
		h.logger.Error("Failed to persist fact log", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	grew := len(merged) - len(h.log)
	h.log = merged

	h.logger.Info("Merged submitted log",
		"received", len(mergee), "appended", grew, "returned", len(diff))
	writeJSON(h.logger, w, http.StatusOK, diff)
}
