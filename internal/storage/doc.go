// Package storage persists channel records across restarts.
//
// Records are opaque JSON documents keyed by stable channel id. Two drivers:
//   - "file": a single JSON snapshot written atomically (tmp + rename)
//   - "sqlite": one row per channel, WAL mode, upsert on save
//
// Writes are expected to arrive through the debouncing Saver so that a burst
// of per-cycle mutations collapses into one disk write.
package storage
