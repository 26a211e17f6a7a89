package ledger

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("ledger storage disabled")

// Record is the persisted remote-delivery receipt for one report bundle.
type Record struct {
	// Folder back-references the bundle's directory. Correlation only; the
	// directory itself is owned by external housekeeping.
	Folder string `json:"folder"`

	// MessageIDs are the remote message ids produced by the delivery, in
	// emission order. They are deleted together as one retention unit.
	MessageIDs []int `json:"msg_ids"`

	// Timestamp is the record creation time, unix seconds.
	Timestamp int64 `json:"ts"`
}

// State is the full persisted ledger state.
type State struct {
	Reports []Record `json:"reports"`

	// SystemErrors holds message ids of critical/system-level alerts.
	// They are operational alerts, not reports, and are never evicted.
	SystemErrors []int `json:"system_errors"`
}

// Store is the persistence backend for ledger state. The state is small and
// bounded, so Save is a full rewrite, not a log append.
type Store interface {
	Load() (State, error)
	Save(State) error
	Close() error
}

// Config configures ledger persistence.
//
// Driver values:
//   - "" or "file": JSON state file, written via temp-file + atomic rename
//   - "sqlite":     SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
