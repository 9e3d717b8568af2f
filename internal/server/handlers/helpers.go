// Package handlers implements the coordination service's HTTP surface:
// instance records, the sync command queue, the registry singletons and
// the raw fact log.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/flocksync/internal/models"
	"github.com/iudanet/flocksync/pkg/api"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(logger *slog.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, api.ErrorResponse{Error: msg})
}

// instanceToAPI converts a domain instance to its wire form.
func instanceToAPI(inst models.Instance) api.Instance {
	return api.Instance{
		ID:       inst.ID,
		Slug:     inst.Slug,
		Name:     inst.Name,
		URL:      inst.URL,
		Leader:   inst.Leader,
		Username: inst.Username,
		Password: inst.Password,
		State:    string(inst.State),
		AutoSync: inst.AutoSync,
	}
}

// commandToAPI converts a domain sync command to its wire form.
func commandToAPI(cmd models.SyncCommand) api.SyncCommand {
	return api.SyncCommand{
		ID:         cmd.ID,
		InstanceID: cmd.InstanceID,
		Acked:      cmd.Acked,
		Start:      cmd.Start,
	}
}
