package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "streamwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveAll replaces the stored set with the snapshot in one transaction:
// upsert every document, then delete rows not present in the snapshot.
func (s *sqliteStore) SaveAll(ctx context.Context, docs []Document) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Format(time.RFC3339Nano)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		ids = append(ids, d.ID)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO channels(id, doc, updated_at) VALUES(?,?,?)
			 ON CONFLICT(id) DO UPDATE SET doc=excluded.doc, updated_at=excluded.updated_at`,
			d.ID, string(d.Body), now,
		)
		if err != nil {
			return err
		}
	}

	// Remove rows for channels deleted from the registry.
	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM channels`); err != nil {
			return err
		}
	} else {
		keep, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM channels WHERE id NOT IN (SELECT value FROM json_each(?))`,
			string(keep),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) LoadAll(ctx context.Context) ([]Document, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM channels ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Body: json.RawMessage(doc)})
	}
	return docs, rows.Err()
}
