package storage

import (
	"context"
	"sync"
	"time"

	logx "streamwatch/pkg/logx"
)

const defaultSaveDelay = 2 * time.Second

// Snapshotter produces the current set of documents to persist.
type Snapshotter func() []Document

// Saver coalesces bursts of save requests into a single write. Request is
// cheap and safe to call from hot paths; the actual write happens once the
// delay window elapses with the freshest snapshot. A failed write is logged
// and dropped: the in-memory state stays authoritative and the next Request
// schedules a fresh attempt.
type Saver struct {
	store    Store
	snapshot Snapshotter
	delay    time.Duration
	log      logx.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	closed  bool
}

func NewSaver(store Store, snapshot Snapshotter, delay time.Duration, log logx.Logger) *Saver {
	if delay <= 0 {
		delay = defaultSaveDelay
	}
	return &Saver{
		store:    store,
		snapshot: snapshot,
		delay:    delay,
		log:      log,
	}
}

// Request schedules a save after the delay window. Requests arriving while a
// save is already pending are absorbed into it.
func (s *Saver) Request() {
	if s == nil || s.store == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending {
		return
	}
	s.pending = true
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *Saver) fire() {
	s.mu.Lock()
	s.pending = false
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.save()
}

// Flush writes immediately, cancelling any pending timer. Used on shutdown.
func (s *Saver) Flush() {
	if s == nil || s.store == nil {
		return
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
	s.mu.Unlock()
	s.save()
}

// Close flushes once and stops accepting further requests.
func (s *Saver) Close() {
	if s == nil || s.store == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
	s.mu.Unlock()
	s.save()
}

func (s *Saver) save() {
	docs := s.snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.SaveAll(ctx, docs); err != nil {
		s.log.Error("channel state save failed", logx.Int("channels", len(docs)), logx.Err(err))
		return
	}
	s.log.Debug("channel state saved", logx.Int("channels", len(docs)))
}
