package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/flocksync/internal/server/storage"
	"github.com/iudanet/flocksync/pkg/api"
)

// RegistryHandler serves the two singleton registry records: the bundled
// front-end app and the local follower web service.
type RegistryHandler struct {
	logger  *slog.Logger
	storage storage.RegistryStorage
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(logger *slog.Logger, s storage.RegistryStorage) *RegistryHandler {
	return &RegistryHandler{
		logger:  logger,
		storage: s,
	}
}

// HandleApp serves GET and PUT /app.
func (h *RegistryHandler) HandleApp(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		app, err := h.storage.GetApp(r.Context())
		if err != nil {
			h.logger.Error("Failed to get app record", "error", err)
			writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(h.logger, w, http.StatusOK, api.App{ID: app.ID, URL: app.URL})
	case http.MethodPut:
		url, ok := h.decodeURL(w, r)
		if !ok {
			return
		}
		app, err := h.storage.UpdateApp(r.Context(), url)
		if err != nil {
			h.logger.Error("Failed to update app record", "error", err)
			writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		h.logger.Info("Updated app record", "url", app.URL)
		writeJSON(h.logger, w, http.StatusOK, api.App{ID: app.ID, URL: app.URL})
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// HandleService serves GET and PUT /service.
func (h *RegistryHandler) HandleService(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		svc, err := h.storage.GetService(r.Context())
		if err != nil {
			h.logger.Error("Failed to get service record", "error", err)
			writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(h.logger, w, http.StatusOK, api.Service{ID: svc.ID, URL: svc.URL})
	case http.MethodPut:
		url, ok := h.decodeURL(w, r)
		if !ok {
			return
		}
		svc, err := h.storage.UpdateService(r.Context(), url)
		if err != nil {
			h.logger.Error("Failed to update service record", "error", err)
			writeError(h.logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		h.logger.Info("Updated service record", "url", svc.URL)
		writeJSON(h.logger, w, http.StatusOK, api.Service{ID: svc.ID, URL: svc.URL})
	default:
		writeError(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (h *RegistryHandler) decodeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req api.UpdateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.URL == "" {
		writeError(h.logger, w, http.StatusBadRequest, "url is required")
		return "", false
	}
	return req.URL, true
}
