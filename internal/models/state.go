package models

import (
	"errors"
	"fmt"
)

// SyncState is the synchronization state of a follower instance.
type SyncState string

const (
	StateNotSynced    SyncState = "not_synced"
	StateSyncing      SyncState = "syncing"
	StateSynced       SyncState = "synced"
	StateFailedToSync SyncState = "failed_to_sync"
)

// SyncStates lists every valid state.
var SyncStates = []SyncState{
	StateNotSynced,
	StateSyncing,
	StateSynced,
	StateFailedToSync,
}

// ErrIllegalTransition is returned when a requested state transition is
// not an edge of the allowed graph. The instance's state is left
// unchanged.
var ErrIllegalTransition = errors.New("illegal sync state transition")

// transitions is the allowed edge set of the state machine. A sync
// attempt always passes through syncing before landing on synced or
// failed_to_sync, and any terminal state can be reset or retried.
var transitions = map[SyncState][]SyncState{
	StateNotSynced:    {StateSyncing},
	StateSyncing:      {StateSynced, StateFailedToSync},
	StateSynced:       {StateNotSynced, StateSyncing},
	StateFailedToSync: {StateNotSynced, StateSyncing},
}

// Valid reports whether s is a recognized sync state.
func (s SyncState) Valid() bool {
	for _, state := range SyncStates {
		if s == state {
			return true
		}
	}
	return false
}

// CanTransition reports whether the edge s -> to is in the allowed graph.
// A transition to the current state is always permitted as a no-op.
func (s SyncState) CanTransition(to SyncState) bool {
	if s == to {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateState checks that state names a recognized sync state.
func ValidateState(state SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("state must be one of %q, %q, %q, %q",
			StateNotSynced, StateSyncing, StateSynced, StateFailedToSync)
	}
	return nil
}
