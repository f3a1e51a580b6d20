package monitor

import (
	"context"

	"streamwatch/internal/channel"
	"streamwatch/internal/resolve"
)

// Recorder starts capture sessions. The monitor owns lifecycle decisions; the
// recorder owns capture mechanics (out of scope here).
type Recorder interface {
	Start(ctx context.Context, st *channel.State, info resolve.StreamInfo) (RecorderHandle, error)
}

// RecorderHandle is the monitor's grip on one running capture session.
type RecorderHandle interface {
	// RequestStop asks the session to end cooperatively.
	RequestStop(ctx context.Context) error
	// ShouldStop reports whether a stop has been requested or the session has
	// already ended. The prober skips channels whose handle is still running.
	ShouldStop() bool
	// Done is closed when the capture process has fully exited.
	Done() <-chan struct{}
}

// watchRecorder finalizes a session whose capture process exits on its own
// (stream drop, recorder crash). Explicit stops remove the handle first, so
// the presence check makes them a no-op here.
func (s *Service) watchRecorder(id string, h RecorderHandle) {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Go0("record.watch", func(c context.Context) {
		select {
		case <-c.Done():
		case <-h.Done():
			if _, ok := s.recorderHandle(id); !ok {
				return
			}
			s.HandleRecorderExit(c, id)
		}
	})
}

// recorder handle bookkeeping lives on the Service as an explicit id-keyed map
// with a presence check, never an implicit existence probe.

func (s *Service) recorderHandle(id string) (RecorderHandle, bool) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	h, ok := s.recorders[id]
	return h, ok
}

func (s *Service) setRecorderHandle(id string, h RecorderHandle) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recorders == nil {
		s.recorders = map[string]RecorderHandle{}
	}
	s.recorders[id] = h
}

func (s *Service) takeRecorderHandle(id string) (RecorderHandle, bool) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	h, ok := s.recorders[id]
	if ok {
		delete(s.recorders, id)
	}
	return h, ok
}
