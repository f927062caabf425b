// Package store persists campaigns and platform health between runs.
// LocalStore is the SQLite implementation used by the daemon; MemoryStore
// backs tests. Both satisfy the orchestrator's campaign.Store interface.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a campaign id has no row.
var ErrNotFound = errors.New("campaign not found")

// PersistenceError wraps a failed store operation. Campaign cycles treat
// these as non-fatal: the in-memory state stays authoritative and the next
// successful save catches the database up.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
