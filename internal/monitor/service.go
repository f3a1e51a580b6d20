// Package monitor implements the adaptive liveness-polling core: the
// dispatcher cycle that scores and lanes due channels, the fixed worker pool
// draining the lanes, and the prober that performs one liveness check with
// per-platform concurrency permits.
package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"streamwatch/internal/channel"
	"streamwatch/internal/eventbus"
	"streamwatch/internal/notify"
	"streamwatch/internal/resolve"
	rtsup "streamwatch/internal/runtime/supervisor"
	logx "streamwatch/pkg/logx"
)

// Notifier is what the monitor needs from the notification pipeline.
// Deliveries are fire-and-forget; failures never reach the scheduler.
type Notifier interface {
	Notify(title, message string)
	Push(title, body string)
	TemplatesSnapshot() notify.Templates
}

// lane tiers keyed by adjusted polling interval.
const (
	laneFastMax   = 60 * time.Second
	laneMediumMax = 180 * time.Second
)

// Service owns the monitoring loop: heartbeat-driven dispatch, the three
// priority lanes with their dedicated workers, recorder handles, and the
// global disk-space gate.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log      logx.Logger
	reg      *channel.Registry
	resolver resolve.Resolver
	recorder Recorder
	notifier Notifier
	bus      eventbus.Bus

	fastQ   chan *channel.State
	mediumQ chan *channel.State
	slowQ   chan *channel.State

	sup  *rtsup.Supervisor
	cron *cron.Cron

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted

	recMu     sync.Mutex
	recorders map[string]RecorderHandle

	// recordingEnabled is the disk guard's global gate: false suspends new
	// recording sessions while checks keep running.
	recordingEnabled atomic.Bool

	rngMu sync.Mutex
	rng   *rand.Rand

	started bool
}

func New(cfg Config, reg *channel.Registry, resolver resolve.Resolver, recorder Recorder, notifier Notifier, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:       cfg.withDefaults(),
		log:       log,
		reg:       reg,
		resolver:  resolver,
		recorder:  recorder,
		notifier:  notifier,
		bus:       bus,
		sems:      map[string]*semaphore.Weighted{},
		recorders: map[string]RecorderHandle{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.recordingEnabled.Store(true)
	return s
}

// Apply swaps in a new configuration. A changed heartbeat reschedules the
// cron entry; lane sizes take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	started := s.started
	s.mu.Unlock()

	if started && prev.Heartbeat != cfg.Heartbeat {
		s.rescheduleHeartbeat(cfg.Heartbeat)
	}
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// RecordingEnabled reports the disk guard's global gate.
func (s *Service) RecordingEnabled() bool { return s.recordingEnabled.Load() }

func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	if !cfg.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.fastQ = make(chan *channel.State, cfg.QueueSize)
	s.mediumQ = make(chan *channel.State, cfg.QueueSize)
	s.slowQ = make(chan *channel.State, cfg.QueueSize)
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "monitor"))),
		rtsup.WithCancelOnError(false),
	)
	s.started = true
	sup := s.sup
	s.mu.Unlock()

	// Fixed worker pool: dedicated tier capacity so slow-lane backlog can
	// never starve fast-lane channels.
	s.startWorker(sup, "worker.fast", s.fastQ)
	s.startWorker(sup, "worker.medium.0", s.mediumQ)
	s.startWorker(sup, "worker.medium.1", s.mediumQ)
	s.startWorker(sup, "worker.slow", s.slowQ)

	if err := s.startHeartbeat(cfg.Heartbeat); err != nil {
		return err
	}

	if cfg.CheckOnStart {
		sup.Go0("cycle.initial", func(c context.Context) {
			s.RunCycle(c)
		})
	}

	s.log.Info("monitor started",
		logx.Duration("heartbeat", cfg.Heartbeat),
		logx.Duration("base_interval", cfg.BaseInterval),
		logx.Bool("check_on_start", cfg.CheckOnStart))
	return nil
}

func (s *Service) startWorker(sup *rtsup.Supervisor, name string, q <-chan *channel.State) {
	sup.GoRestart(name, func(ctx context.Context) error {
		s.workerLoop(ctx, q)
		return ctx.Err()
	})
}

// workerLoop drains one lane. A single channel's probe failure is converted
// into a status update and logged; it never stops the loop.
func (s *Service) workerLoop(ctx context.Context, q <-chan *channel.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-q:
			if !ok {
				return
			}
			if st == nil {
				continue
			}
			if !st.MonitorEnabled || st.IsRecording {
				st.EndCheck()
				continue
			}
			if err := s.probeOwned(ctx, st); err != nil {
				s.log.Debug("probe failed",
					logx.String("channel", st.Name),
					logx.String("id", st.ID),
					logx.Err(err))
			}
		}
	}
}

func (s *Service) startHeartbeat(every time.Duration) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", every)
	_, err := c.AddFunc(spec, func() {
		ctx := s.supervisorContext()
		if ctx == nil {
			return
		}
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("heartbeat schedule %q: %w", spec, err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	return nil
}

func (s *Service) rescheduleHeartbeat(every time.Duration) {
	s.mu.Lock()
	old := s.cron
	s.mu.Unlock()
	if old != nil {
		<-old.Stop().Done()
	}
	if err := s.startHeartbeat(every); err != nil {
		s.log.Error("heartbeat reschedule failed", logx.Err(err))
	}
}

func (s *Service) supervisorContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup == nil {
		return nil
	}
	return s.sup.Context()
}

// Stop halts the heartbeat and workers and cooperatively stops every running
// recording session, waiting until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.cron
	s.cron = nil
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	for _, st := range s.reg.All() {
		if st.IsRecording {
			if err := s.StopRecording(ctx, st.ID, false); err != nil {
				s.log.Warn("recorder stop on shutdown failed",
					logx.String("channel", st.Name), logx.Err(err))
			}
		}
	}

	if sup != nil {
		sup.Cancel()
		_ = sup.Wait(ctx)
	}
	s.log.Info("monitor stopped")
}

// platformSem returns the probe permit pool for a platform key, creating it
// lazily on first use.
func (s *Service) platformSem(key string) *semaphore.Weighted {
	if key == "" {
		key = "default"
	}
	s.semMu.Lock()
	defer s.semMu.Unlock()
	sem, ok := s.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(s.config().PlatformMaxConcurrent)
		s.sems[key] = sem
	}
	return sem
}

func (s *Service) jitter() time.Duration {
	cfg := s.config()
	span := cfg.JitterMax - cfg.JitterMin
	s.rngMu.Lock()
	d := cfg.JitterMin + time.Duration(s.rng.Int63n(int64(span)+1))
	s.rngMu.Unlock()
	return d
}

func (s *Service) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// StopRecording ends a channel's recording session. The recorder is asked to
// stop cooperatively; when no handle is registered, the force-stop flag is
// raised so a lost reference still terminates.
func (s *Service) StopRecording(ctx context.Context, id string, manual bool) error {
	st, ok := s.reg.FindByID(id)
	if !ok {
		return channel.ErrNotFound
	}
	if !acquireCheck(ctx, st) {
		return ctx.Err()
	}
	defer st.EndCheck()
	return s.stopRecordingOwned(ctx, st, manual)
}

// stopRecordingOwned does the stop with probe ownership already held.
func (s *Service) stopRecordingOwned(ctx context.Context, st *channel.State, manual bool) error {
	if !st.IsRecording {
		return ErrNoRecorder
	}
	st.StoppingInProgress = true

	handle, found := s.takeRecorderHandle(st.ID)
	if found {
		if err := handle.RequestStop(ctx); err != nil {
			s.log.Warn("recorder stop request failed",
				logx.String("channel", st.Name), logx.Err(err))
		}
	} else {
		st.ForceStop = true
	}

	now := time.Now()
	st.StopSession(now, manual)
	st.StoppingInProgress = false
	s.pushLiveEnd(st, now)
	s.publishUpdate(st.ID)
	s.reg.RequestSave()
	s.log.Info("recording stopped",
		logx.String("channel", st.Name),
		logx.Bool("manual", manual),
		logx.String("duration", channel.FormatDuration(st.LastDuration)))
	return nil
}

// SetMonitoring enables or disables monitoring for one channel. Disabling a
// channel that is recording stops the session first.
func (s *Service) SetMonitoring(ctx context.Context, id string, enabled bool) error {
	st, ok := s.reg.FindByID(id)
	if !ok {
		return channel.ErrNotFound
	}
	if !acquireCheck(ctx, st) {
		return ctx.Err()
	}
	defer st.EndCheck()
	if !enabled && st.IsRecording {
		if err := s.stopRecordingOwned(ctx, st, true); err != nil && err != ErrNoRecorder {
			return err
		}
	}
	st.MonitorEnabled = enabled
	if enabled {
		st.Status = channel.StatusMonitoring
		st.DetectionTime = time.Time{} // due on the next cycle
		st.ManuallyStopped = false
	} else {
		st.Status = channel.StatusStoppedMonitoring
		st.IsLive = false
		st.NotifiedLiveStart = false
	}
	s.publishUpdate(id)
	s.reg.RequestSave()
	return nil
}

// SetMonitoringAll applies SetMonitoring to every registered channel.
func (s *Service) SetMonitoringAll(ctx context.Context, enabled bool) {
	for _, st := range s.reg.All() {
		if err := s.SetMonitoring(ctx, st.ID, enabled); err != nil {
			s.log.Warn("batch monitoring toggle failed",
				logx.String("id", st.ID), logx.Err(err))
		}
	}
}

// RemoveChannel deletes a channel, stopping any recording session first. Probe
// ownership is taken for the whole removal so an in-flight probe can finish
// before the channel disappears.
func (s *Service) RemoveChannel(ctx context.Context, id string) error {
	st, ok := s.reg.FindByID(id)
	if !ok {
		return channel.ErrNotFound
	}
	if !acquireCheck(ctx, st) {
		return ctx.Err()
	}
	if st.IsRecording {
		if err := s.stopRecordingOwned(ctx, st, true); err != nil && err != ErrNoRecorder {
			st.EndCheck()
			return err
		}
	}
	if _, err := s.reg.Remove(id); err != nil {
		st.EndCheck()
		return err
	}
	st.MonitorEnabled = false
	st.EndCheck()
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventChannelRemoved, Data: id})
	}
	return nil
}

func (s *Service) publishUpdate(id string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventChannelUpdated, Data: id})
	}
}
