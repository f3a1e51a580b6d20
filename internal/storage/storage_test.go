package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "streamwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: ""}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil store for empty driver, got %T", st)
	}

	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil store for driver none, got %T", st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "channels.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	// A fresh store has nothing to load.
	docs, err := st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll on empty store: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}

	in := []Document{
		{ID: "a", Body: json.RawMessage(`{"streamer_name":"alpha"}`)},
		{ID: "b", Body: json.RawMessage(`{"streamer_name":"beta"}`)},
	}
	if err := st.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	docs, err = st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	got := map[string]string{}
	for _, d := range docs {
		var body struct {
			Name string `json:"streamer_name"`
		}
		if err := json.Unmarshal(d.Body, &body); err != nil {
			t.Fatalf("unmarshal %s: %v", d.ID, err)
		}
		got[d.ID] = body.Name
	}
	if got["a"] != "alpha" || got["b"] != "beta" {
		t.Fatalf("unexpected documents: %v", got)
	}

	// A later snapshot replaces the previous one wholesale.
	if err := st.SaveAll(ctx, in[:1]); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	docs, err = st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("expected only document a, got %v", docs)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "channels.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	in := []Document{
		{ID: "a", Body: json.RawMessage(`{"url":"https://example.com/a"}`)},
		{ID: "b", Body: json.RawMessage(`{"url":"https://example.com/b"}`)},
	}
	if err := st.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	// Upsert path: same id, new body.
	in[0].Body = json.RawMessage(`{"url":"https://example.com/a2"}`)
	if err := st.SaveAll(ctx, in); err != nil {
		t.Fatalf("SaveAll upsert: %v", err)
	}

	docs, err := st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	// Delete path: snapshot without b drops its row.
	if err := st.SaveAll(ctx, in[:1]); err != nil {
		t.Fatalf("SaveAll delete: %v", err)
	}
	docs, err = st.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("expected only document a, got %v", docs)
	}
}

type countingStore struct {
	mu    sync.Mutex
	saves int
	last  []Document
	fail  bool
}

func (c *countingStore) SaveAll(_ context.Context, docs []Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.last = docs
	if c.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (c *countingStore) LoadAll(context.Context) ([]Document, error) { return nil, nil }
func (c *countingStore) Close() error                                { return nil }

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func TestSaverCoalescesRequests(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	snap := func() []Document {
		return []Document{{ID: "a", Body: json.RawMessage(`{}`)}}
	}
	s := NewSaver(cs, snap, 30*time.Millisecond, logx.Nop())

	for i := 0; i < 20; i++ {
		s.Request()
	}

	deadline := time.Now().Add(2 * time.Second)
	for cs.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("save never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Allow a straggler window, then confirm the burst collapsed.
	time.Sleep(60 * time.Millisecond)
	if got := cs.count(); got != 1 {
		t.Fatalf("expected 1 save for the burst, got %d", got)
	}
}

func TestSaverFlushWritesImmediately(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	s := NewSaver(cs, func() []Document { return nil }, time.Hour, logx.Nop())
	s.Request()
	s.Flush()
	if got := cs.count(); got != 1 {
		t.Fatalf("expected flush to save once, got %d", got)
	}
}

func TestSaverSurvivesWriteFailure(t *testing.T) {
	t.Parallel()

	cs := &countingStore{fail: true}
	s := NewSaver(cs, func() []Document { return nil }, 10*time.Millisecond, logx.Nop())
	s.Request()
	time.Sleep(50 * time.Millisecond)
	// A failed write must not wedge the saver.
	s.Request()
	time.Sleep(50 * time.Millisecond)
	if got := cs.count(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSaverCloseStopsFurtherSaves(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	s := NewSaver(cs, func() []Document { return nil }, time.Hour, logx.Nop())
	s.Close()
	if got := cs.count(); got != 1 {
		t.Fatalf("expected final flush on close, got %d saves", got)
	}
	s.Request()
	time.Sleep(20 * time.Millisecond)
	if got := cs.count(); got != 1 {
		t.Fatalf("expected no save after close, got %d", got)
	}
}
