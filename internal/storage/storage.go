package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	logx "streamwatch/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON snapshot file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled and channels live only in
// memory for the lifetime of the process.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Document is one persisted channel record. Body is the channel's JSON
// serialization; the store never looks inside it.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Store is the persistence gateway used by the monitoring core.
//
// SaveAll must be atomic: a crash mid-write must never leave a partial or
// corrupt set observable on the next LoadAll. Replaying the same snapshot is
// idempotent.
type Store interface {
	SaveAll(ctx context.Context, docs []Document) error
	LoadAll(ctx context.Context) ([]Document, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
