package monitor

import (
	"context"
	"fmt"
	"time"

	"streamwatch/internal/channel"
	"streamwatch/internal/notify"
	"streamwatch/internal/predict"
	"streamwatch/internal/resolve"
	logx "streamwatch/pkg/logx"
)

// Probe runs one liveness check, acquiring probe ownership itself. Returns
// nil without probing when another probe already owns the channel.
func (s *Service) Probe(ctx context.Context, st *channel.State) error {
	if !st.TryBeginCheck() {
		return nil
	}
	return s.probeOwned(ctx, st)
}

// acquireCheck blocks until probe ownership of st is taken or ctx ends. Stop
// and recorder-exit paths use it so their state writes never overlap an
// in-flight probe.
func acquireCheck(ctx context.Context, st *channel.State) bool {
	for !st.TryBeginCheck() {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	return true
}

// probeOwned performs the check for a channel whose checking flag the caller
// already holds (the dispatcher sets it before enqueueing). Ownership is
// released in a guaranteed-cleanup block along with the update event, no
// matter which branch ran.
func (s *Service) probeOwned(ctx context.Context, st *channel.State) (err error) {
	defer func() {
		st.EndCheck()
		s.publishUpdate(st.ID)
	}()

	cfg := s.config()
	now := time.Now()

	// A manual stop only suppresses the session it stopped; the next probe
	// starts clean.
	st.ManuallyStopped = false

	if st.IsRecording {
		return nil
	}
	if handle, ok := s.recorderHandle(st.ID); ok && !handle.ShouldStop() {
		// A previous session's recorder has not finished stopping yet.
		s.log.Debug("skipping check, recorder still active", logx.String("channel", st.Name))
		return nil
	}
	if !st.MonitorEnabled {
		st.Status = channel.StatusStoppedMonitoring
		return nil
	}

	// Scheduled windows gate the probe itself: outside the window no network
	// call is spent at all.
	if st.ScheduledRecording && !inScheduledWindow(st.ScheduledStartTimes, st.MonitorHours, now) {
		st.Status = channel.StatusOutOfSchedule
		st.IsLive = false
		st.DetectionTime = now
		return nil
	}

	st.DetectionTime = now
	st.Status = channel.StatusChecking

	if st.PlatformKey == "" {
		st.PlatformKey = resolve.KeyFromURL(st.URL)
	}
	sem := s.platformSem(st.PlatformKey)
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)

	// Desynchronize probe bursts against the platform.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.jitter()):
	}

	info, err := s.resolver.Resolve(ctx, st.URL, st.Platform)
	if err != nil {
		st.Status = channel.StatusCheckError
		return fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	if info.IsLive && info.AnchorName == "" {
		st.Status = channel.StatusCheckError
		return fmt.Errorf("%w: incomplete result for %s", ErrResolveFailed, st.URL)
	}

	// Pattern learning happens on both outcomes.
	predict.Observe(st, info.IsLive, time.Now(), cfg.AlphaActive, cfg.AlphaOffline)

	if info.IsLive {
		s.handleLive(ctx, st, info, cfg)
	} else {
		s.handleOffline(st)
	}
	return nil
}

func (s *Service) handleLive(ctx context.Context, st *channel.State, info resolve.StreamInfo, cfg Config) {
	now := time.Now()
	st.IsLive = true
	st.LiveTitle = info.Title
	st.LastActiveAt = now

	// Anti-duplicate: consecutive live observations fire exactly one start
	// notification until an offline observation resets the flag.
	if !st.NotifiedLiveStart {
		st.NotifiedLiveStart = true
		st.NotifiedLiveEnd = false
		s.announceLiveStart(st, now)
	}

	if st.NotifyOnly {
		// Broadcasting, not recording: back off to the reduced cadence now
		// that the start has been announced.
		st.Status = channel.StatusLiveBroadcasting
		st.LoopInterval = cfg.NotifyInterval
		return
	}

	if !s.recordingEnabled.Load() {
		st.Status = channel.StatusNoSpace
		return
	}

	st.Status = channel.StatusPreparingRecord
	if s.recorder == nil {
		st.Status = channel.StatusNotRecording
		return
	}
	handle, err := s.recorder.Start(ctx, st, info)
	if err != nil {
		st.Status = channel.StatusCheckError
		s.log.Error("recorder start failed", logx.String("channel", st.Name), logx.Err(err))
		return
	}
	s.setRecorderHandle(st.ID, handle)
	st.StartSession(now)
	s.watchRecorder(st.ID, handle)
	s.log.Info("recording started",
		logx.String("channel", st.Name),
		logx.String("title", st.LiveTitle))
}

func (s *Service) handleOffline(st *channel.State) {
	wasLive := st.IsLive
	st.IsLive = false
	if wasLive {
		s.pushLiveEnd(st, time.Now())
	}
	st.NotifiedLiveStart = false
	st.Status = channel.StatusMonitoring
}

// CheckWithRetry re-probes a channel that is suspected to have dropped and
// might resume (ad breaks, reconnects). It probes at most Retry.Count times
// with a fixed delay between attempts, stopping early the moment the channel
// is recording again or monitoring is disabled.
func (s *Service) CheckWithRetry(ctx context.Context, st *channel.State) error {
	cfg := s.config()
	attempts := cfg.Retry.Count
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Retry.Delay):
			}
		}
		if !acquireCheck(ctx, st) {
			return ctx.Err()
		}
		if st.IsRecording || !st.MonitorEnabled {
			st.EndCheck()
			return nil
		}
		// probeOwned releases ownership on return.
		lastErr = s.probeOwned(ctx, st)
		if lastErr == nil && st.IsLive {
			return nil
		}
	}
	return lastErr
}

// HandleRecorderExit is called when a capture session ends without an explicit
// stop request (process exit, stream drop). The retry wrapper decides whether
// the drop was transient: if the channel resolves live again the prober starts
// a fresh session; otherwise the session is finalized.
func (s *Service) HandleRecorderExit(ctx context.Context, id string) {
	st, ok := s.reg.FindByID(id)
	if !ok {
		return
	}
	if !acquireCheck(ctx, st) {
		return
	}
	s.takeRecorderHandle(id)

	// StopSession leaves the notification dedupe flags alone, so a stream
	// that resumes during the recheck does not re-announce.
	st.StopSession(time.Now(), false)
	st.StoppingInProgress = false
	s.reg.RequestSave()
	st.EndCheck()

	if err := s.CheckWithRetry(ctx, st); err != nil {
		s.log.Debug("post-drop recheck failed", logx.String("channel", st.Name), logx.Err(err))
	}

	if !acquireCheck(ctx, st) {
		return
	}
	if st.IsLive {
		st.EndCheck()
		return
	}
	s.pushLiveEnd(st, time.Now())
	st.NotifiedLiveStart = false
	st.Status = channel.StatusMonitoring
	st.EndCheck()
	s.publishUpdate(id)
}

func (s *Service) announceLiveStart(st *channel.State, now time.Time) {
	if s.notifier == nil {
		return
	}
	vars := notify.Vars{
		RoomName: st.Name,
		Title:    st.LiveTitle,
		URL:      st.URL,
		Platform: st.Platform,
		Time:     now,
	}
	tpl := s.notifier.TemplatesSnapshot()
	title := notify.RenderOr(tpl.LiveStartTitle, "[room_name] is live", vars)
	body := notify.RenderOr(tpl.LiveStartContent, "[room_name] started broadcasting [title] at [time]", vars)
	s.notifier.Notify(title, body)
	if st.PushEnabled {
		s.notifier.Push(title, body)
	}
}

func (s *Service) pushLiveEnd(st *channel.State, now time.Time) {
	if s.notifier == nil || st.NotifiedLiveEnd || !st.NotifiedLiveStart {
		return
	}
	st.NotifiedLiveEnd = true
	vars := notify.Vars{
		RoomName: st.Name,
		Title:    st.LiveTitle,
		URL:      st.URL,
		Platform: st.Platform,
		Time:     now,
	}
	tpl := s.notifier.TemplatesSnapshot()
	title := notify.RenderOr(tpl.LiveEndTitle, "[room_name] went offline", vars)
	body := notify.RenderOr(tpl.LiveEndContent, "[room_name] ended the broadcast at [time]", vars)
	s.notifier.Notify(title, body)
	if st.PushEnabled {
		s.notifier.Push(title, body)
	}
}
