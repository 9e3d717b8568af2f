package models

import "time"

// SyncCommand is one unit of pending synchronization work for a follower
// instance. Lifecycle: enqueued (acked=false, live) -> popped (new
// version with acked=true) -> completed (window closed, no longer live).
type SyncCommand struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Acked      bool      `json:"acked"`
	Start      time.Time `json:"start"`
}
