package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/flocksync/internal/server/middleware"
	"github.com/iudanet/flocksync/internal/server/storage"
)

// Storage is the full persistence surface the router needs.
type Storage interface {
	storage.InstanceStorage
	storage.CommandStorage
	storage.RegistryStorage
}

// NewRouter assembles the coordination service's HTTP handler: instance
// records, the sync command queue, the registry singletons, the fact log
// at the root and a health probe, behind recovery and request logging.
// Queue polling and health checks are excluded from the request log.
func NewRouter(logger *slog.Logger, s Storage, logHandler *LogHandler, version string) http.Handler {
	instances := NewInstancesHandler(logger, s)
	commands := NewCommandsHandler(logger, s, s)
	registry := NewRegistryHandler(logger, s)
	health := NewHealthHandler(logger, version)

	mux := http.NewServeMux()
	mux.HandleFunc("/instances", instances.HandleInstances)
	mux.HandleFunc("/instances/", instances.HandleInstanceByID)
	mux.HandleFunc("/sync_commands", commands.HandleCommands)
	mux.HandleFunc("/sync_commands/", commands.HandleCommandByID)
	mux.HandleFunc("/app", registry.HandleApp)
	mux.HandleFunc("/service", registry.HandleService)
	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/", logHandler.HandleLog)

	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(logger, []string{"/health", "/sync_commands"})(handler)
	handler = middleware.Recovery(logger)(handler)
	return handler
}
