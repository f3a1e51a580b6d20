package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "streamwatch/pkg/logx"
)

// fileStore keeps the whole channel set in one JSON file.
//
// Every SaveAll writes the full snapshot to <path>.tmp and renames it over the
// real file, so a crash can only ever leave the previous complete snapshot.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

type fileDocument struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) SaveAll(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make([]fileDocument, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		out = append(out, fileDocument{ID: d.ID, Body: d.Body})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) LoadAll(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var in []fileDocument
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(in))
	for _, d := range in {
		if d.ID == "" {
			continue
		}
		docs = append(docs, Document{ID: d.ID, Body: d.Body})
	}
	return docs, nil
}
