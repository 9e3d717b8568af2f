package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/flocksync/internal/models"
	"github.com/iudanet/flocksync/internal/server/storage"
	"github.com/iudanet/flocksync/pkg/api"
)

// InstancesHandler serves the follower-instance record endpoints.
type InstancesHandler struct {
	logger  *slog.Logger
	storage storage.InstanceStorage
}

// NewInstancesHandler creates a new instances handler.
func NewInstancesHandler(logger *slog.Logger, s storage.InstanceStorage) *InstancesHandler {
	return &InstancesHandler{
		logger:  logger,
		storage: s,
	}
}

// HandleInstances serves GET and POST /instances.
func (h *InstancesHandler) HandleInstances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// HandleInstanceByID serves GET and PUT /instances/{id} and
// PUT /instances/{id}/state.
func (h *InstancesHandler) HandleInstanceByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/instances/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(h.logger, w, http.StatusNotFound, "instance ID missing")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case sub == "" && r.Method == http.MethodPut:
		h.handleUpdate(w, r, id)
	case sub == "state" && r.Method == http.MethodPut:
		h.handleTransition(w, r, id)
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (h *InstancesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	instances, err := h.storage.ListInstances(r.Context())
	if err != nil {
		h.logger.Error("Failed to list instances", "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]api.Instance, 0, len(instances))
	for _, inst := range instances {
		resp = append(resp, instanceToAPI(inst))
	}
	writeJSON(h.logger, w, http.StatusOK, resp)
}

func (h *InstancesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	inst, err := h.storage.CreateInstance(r.Context(), models.Instance{
		Slug:     req.Slug,
		Name:     req.Name,
		URL:      req.URL,
		Leader:   req.Leader,
		Username: req.Username,
		Password: req.Password,
		AutoSync: req.AutoSync,
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlugInUse) {
			writeError(h.logger, w, http.StatusConflict, err.Error())
			return
		}
		// Constructor failures are validation errors, returned verbatim.
		h.logger.Warn("Rejected instance create", "slug", req.Slug, "error", err)
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("Created instance", "id", inst.ID, "slug", inst.Slug)
	writeJSON(h.logger, w, http.StatusCreated, instanceToAPI(inst))
}

func (h *InstancesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.storage.GetInstance(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrInstanceNotFound) {
			writeError(h.logger, w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to get instance", "id", id, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, instanceToAPI(inst))
}

// handleUpdate versions the record with new field values. Slug or state
// changes submitted through this path are silently ignored; the wire
// type simply has no fields for them.
func (h *InstancesHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req api.UpdateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	inst, err := h.storage.UpdateInstance(r.Context(), id, storage.InstanceUpdate{
		Name:     req.Name,
		URL:      req.URL,
		Leader:   req.Leader,
		Username: req.Username,
		Password: req.Password,
		AutoSync: req.AutoSync,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInstanceNotFound) {
			writeError(h.logger, w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to update instance", "id", id, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("Updated instance", "id", id)
	writeJSON(h.logger, w, http.StatusOK, instanceToAPI(inst))
}

func (h *InstancesHandler) handleTransition(w http.ResponseWriter, r *http.Request, id string) {
	var req api.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	inst, err := h.storage.TransitionInstance(r.Context(), id, models.SyncState(req.State))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInstanceNotFound):
			writeError(h.logger, w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrIllegalTransition):
			writeError(h.logger, w, http.StatusBadRequest, err.Error())
		default:
			// Unknown state names are validation errors too.
			writeError(h.logger, w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.logger.Info("Transitioned instance", "id", id, "state", inst.State)
	writeJSON(h.logger, w, http.StatusOK, instanceToAPI(inst))
}
