package api

import "time"

// SyncCommand is the wire form of a live sync command.
type SyncCommand struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Acked      bool      `json:"acked"`
	Start      time.Time `json:"start"`
}

// EnqueueCommandRequest enqueues a sync command for an instance. The
// operation is idempotent: an already-live command for the instance is
// returned unchanged.
type EnqueueCommandRequest struct {
	InstanceID string `json:"instance_id"`
}

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
