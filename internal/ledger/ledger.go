package ledger

import (
	"sync"

	"calcnotify/pkg/logx"
)

// maxRecords is the hard cap on persisted report records, independent of
// keep_last. It bounds state-file size when eviction is configured loosely.
const maxRecords = 200

// Ledger is the in-memory ledger plus its write-through store. All mutations
// happen under one mutex; a Ledger belongs to exactly one notifier/history
// directory pair, and cross-process sharing is undefined behavior.
type Ledger struct {
	mu    sync.Mutex
	log   logx.Logger
	store Store // may be nil: memory-only ledger
	state State
}

// Load builds a Ledger from store. It never fails: a missing or corrupt
// state file degrades to an empty ledger, because a broken history must not
// block new reports.
func Load(store Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Ledger{log: log, store: store}
	if store == nil {
		return l
	}
	st, err := store.Load()
	if err != nil {
		log.Warn("ledger state unreadable; starting empty", logx.Err(err))
		return l
	}
	l.state = st
	return l
}

// Append adds rec, truncates to the newest maxRecords entries, and persists.
func (l *Ledger) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Reports = append(l.state.Reports, rec)
	if n := len(l.state.Reports); n > maxRecords {
		l.state.Reports = l.state.Reports[n-maxRecords:]
	}
	l.persistLocked()
}

// EvictExcess pops the oldest records while more than keepLast remain and
// returns them for remote cleanup. keepLast is clamped to >= 1. Calling it
// again without an intervening Append returns nil.
func (l *Ledger) EvictExcess(keepLast int) []Record {
	if keepLast < 1 {
		keepLast = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.state.Reports) <= keepLast {
		return nil
	}
	n := len(l.state.Reports) - keepLast
	evicted := make([]Record, n)
	copy(evicted, l.state.Reports[:n])
	l.state.Reports = append(l.state.Reports[:0:0], l.state.Reports[n:]...)
	l.persistLocked()
	return evicted
}

// RecordSystemError remembers the message id of a critical alert.
// System errors are never evicted by the retention policy.
func (l *Ledger) RecordSystemError(messageID int) {
	if messageID == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.SystemErrors = append(l.state.SystemErrors, messageID)
	l.persistLocked()
}

// Reports returns a copy of the current records, oldest first.
func (l *Ledger) Reports() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.state.Reports))
	copy(out, l.state.Reports)
	return out
}

// SystemErrors returns a copy of the recorded critical-alert message ids.
func (l *Ledger) SystemErrors() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.state.SystemErrors))
	copy(out, l.state.SystemErrors)
	return out
}

func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// persistLocked writes the state through to the store. Persistence failures
// are swallowed: the in-memory ledger stays authoritative.
func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.state); err != nil {
		l.log.Warn("ledger persist failed", logx.Err(err))
	}
}
