// Package ledger persists the delivery history of report bundles.
//
// A Ledger records, per delivered bundle, the remote message ids that form
// one retention unit. Retention is strictly recency-based: once the number
// of records exceeds keep_last, the oldest records are popped (FIFO) and
// handed back to the caller so the corresponding remote messages can be
// deleted.
//
// Durability is best-effort: every mutation is written through to the
// backing store, but a failing store never fails the mutation. The
// in-memory state stays authoritative for the life of the process.
package ledger
