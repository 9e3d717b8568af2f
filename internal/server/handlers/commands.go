package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/flocksync/internal/server/storage"
	"github.com/iudanet/flocksync/pkg/api"
)

// CommandsHandler serves the sync command queue endpoints.
type CommandsHandler struct {
	logger    *slog.Logger
	storage   storage.CommandStorage
	instances storage.InstanceStorage
}

// NewCommandsHandler creates a new sync command queue handler.
func NewCommandsHandler(logger *slog.Logger, s storage.CommandStorage, instances storage.InstanceStorage) *CommandsHandler {
	return &CommandsHandler{
		logger:    logger,
		storage:   s,
		instances: instances,
	}
}

// HandleCommands serves GET, POST and PUT /sync_commands.
func (h *CommandsHandler) HandleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleEnqueue(w, r)
	case http.MethodPut:
		h.handlePop(w, r)
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// HandleCommandByID serves DELETE /sync_commands/{id}.
func (h *CommandsHandler) HandleCommandByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/sync_commands/")
	if id == "" || strings.Contains(id, "/") {
		writeError(h.logger, w, http.StatusNotFound, "command ID missing")
		return
	}

	cmd, err := h.storage.CompleteCommand(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrCommandNotFound) {
			writeError(h.logger, w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to complete command", "id", id, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("Completed sync command", "id", cmd.ID, "instance_id", cmd.InstanceID)
	writeJSON(h.logger, w, http.StatusOK, commandToAPI(cmd))
}

func (h *CommandsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	commands, err := h.storage.ListCommands(r.Context())
	if err != nil {
		h.logger.Error("Failed to list commands", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]api.SyncCommand, 0, len(commands))
	for _, cmd := range commands {
		resp = append(resp, commandToAPI(cmd))
	}
	writeJSON(h.logger, w, http.StatusOK, resp)
}

// handleEnqueue enqueues a sync command for an instance. Idempotent: a
// 201 means a new command was created, a 200 returns the live one.
func (h *CommandsHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InstanceID == "" {
		writeError(h.logger, w, http.StatusBadRequest, "instance_id is required")
		return
	}

	// The command must target a record that exists.
	if _, err := h.instances.GetInstance(r.Context(), req.InstanceID); err != nil {
		if errors.Is(err, storage.ErrInstanceNotFound) {
			writeError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to check instance", "id", req.InstanceID, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	cmd, created, err := h.storage.EnqueueCommand(r.Context(), req.InstanceID)
	if err != nil {
		h.logger.Error("Failed to enqueue command", "instance_id", req.InstanceID, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.logger.Info("Enqueued sync command", "id", cmd.ID, "instance_id", cmd.InstanceID)
	}
	writeJSON(h.logger, w, status, commandToAPI(cmd))
}

func (h *CommandsHandler) handlePop(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.storage.PopCommand(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNoCommands) {
			writeError(h.logger, w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to pop command", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("Popped sync command", "id", cmd.ID, "instance_id", cmd.InstanceID)
	writeJSON(h.logger, w, http.StatusOK, commandToAPI(cmd))
}
