package channel

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Status is the operator-visible condition of a monitored channel.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusChecking          Status = "checking"
	StatusMonitoring        Status = "monitoring"
	StatusLiveBroadcasting  Status = "live_broadcasting" // live, notify-only (no capture)
	StatusPreparingRecord   Status = "preparing_record"
	StatusRecording         Status = "recording"
	StatusNotRecording      Status = "not_recording"
	StatusOutOfSchedule     Status = "out_of_schedule"
	StatusCheckError        Status = "check_error"
	StatusNoSpace           Status = "no_space"
	StatusStoppedMonitoring Status = "stopped_monitoring"
)

// State is the mutable per-channel record.
//
// Concurrency contract: structural membership is guarded by the Registry.
// Field mutation is single-writer-at-a-time per channel: only one prober may
// hold the checking flag (TryBeginCheck), and the dispatcher only touches
// channels it is not about to enqueue. The checking flag itself is atomic so
// dispatch de-duplication never races with probe completion.
type State struct {
	// Identity. ID is stable and never reused.
	ID  string `json:"id"`
	URL string `json:"url"`

	// Configuration, externally supplied. The core never mutates these outside
	// of Patch.Apply; PlatformKey is the one exception (derived and cached once
	// the first resolution reveals it).
	Name                string `json:"streamer_name"`
	Quality             string `json:"quality"`
	RecordFormat        string `json:"record_format"`
	SegmentRecord       bool   `json:"segment_record"`
	SegmentTimeSec      int    `json:"segment_time,omitempty"`
	MonitorEnabled      bool   `json:"monitor_enabled"`
	ScheduledRecording  bool   `json:"scheduled_recording"`
	ScheduledStartTimes string `json:"scheduled_start_times,omitempty"` // comma-separated HH:MM
	MonitorHours        string `json:"monitor_hours,omitempty"`         // comma-separated spans, aligned with start times
	PushEnabled         bool   `json:"push_enabled"`
	NotifyOnly          bool   `json:"notify_only"`
	Platform            string `json:"platform,omitempty"`
	PlatformKey         string `json:"platform_key,omitempty"`

	// Learned statistics.
	LiveCheckCount      int              `json:"live_check_count"`
	LiveFoundCount      int              `json:"live_found_count"`
	PriorityScore       float64          `json:"priority_score"`
	HistoricalIntervals map[string][]int `json:"historical_intervals,omitempty"` // weekday digit -> hours, newest last
	LastSeenLive        time.Time        `json:"last_seen_live,omitzero"`
	ConsistencyScore    float64          `json:"consistency_score"`
	AddedAt             time.Time        `json:"added_at,omitzero"`
	LastActiveAt        time.Time        `json:"last_active_at,omitzero"`

	// Live/runtime flags. Not persisted except where tagged.
	IsLive             bool `json:"-"`
	IsRecording        bool `json:"-"`
	ManuallyStopped    bool `json:"-"`
	ForceStop          bool `json:"-"`
	StoppingInProgress bool `json:"-"`
	NotifiedLiveStart  bool `json:"-"`
	NotifiedLiveEnd    bool `json:"-"`

	Status    Status `json:"-"`
	LiveTitle string `json:"-"`

	// Timers.
	DetectionTime      time.Time     `json:"-"` // last check start; zero means never checked
	StartTime          time.Time     `json:"-"` // recording start; zero unless recording
	CumulativeDuration time.Duration `json:"-"`
	LastDuration       time.Duration `json:"last_duration,omitempty"`

	// Derived each dispatcher cycle.
	LoopInterval time.Duration `json:"-"`

	checking atomic.Bool
}

// TryBeginCheck marks the channel as having an in-flight probe.
// It returns false if another probe already owns the channel; at most one
// probe may be in flight per channel.
func (s *State) TryBeginCheck() bool {
	return s.checking.CompareAndSwap(false, true)
}

// EndCheck releases probe ownership. Safe to call from a defer regardless of
// which probe branch ran.
func (s *State) EndCheck() {
	s.checking.Store(false)
}

// Checking reports whether a probe currently owns the channel.
func (s *State) Checking() bool {
	return s.checking.Load()
}

// StartSession transitions the channel into a recording session.
// It is a no-op unless the channel is live and not already recording
// (recording implies live, never the other way around).
func (s *State) StartSession(now time.Time) bool {
	if !s.IsLive || s.IsRecording {
		return false
	}
	s.CumulativeDuration = 0
	s.LastDuration = 0
	s.StartTime = now
	s.IsRecording = true
	s.Status = StatusRecording
	return true
}

// StopSession ends a recording session and accumulates its duration.
// The caller is responsible for signaling the recorder; this only does the
// state bookkeeping. Returns true if a session was actually stopped.
func (s *State) StopSession(now time.Time, manual bool) bool {
	s.IsLive = false
	if !s.IsRecording {
		return false
	}
	s.StoppingInProgress = true
	s.DetectionTime = time.Time{}
	if !s.StartTime.IsZero() {
		s.CumulativeDuration += now.Sub(s.StartTime)
		s.LastDuration = s.CumulativeDuration
	}
	s.StartTime = time.Time{}
	s.IsRecording = false
	s.ManuallyStopped = manual
	s.Status = StatusNotRecording
	return true
}

// SessionDuration returns the current session length (running total while
// recording, last total otherwise).
func (s *State) SessionDuration(now time.Time) time.Duration {
	if s.IsRecording && !s.StartTime.IsZero() {
		return s.CumulativeDuration + now.Sub(s.StartTime)
	}
	return s.LastDuration
}

// FormatDuration renders a duration the way channel cards show it (H:MM:SS).
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// Due reports whether the channel should be probed at now: either it has
// never been checked, or its adjusted interval has elapsed since the last
// check started.
func (s *State) Due(now time.Time) bool {
	if s.DetectionTime.IsZero() {
		return true
	}
	if s.LoopInterval <= 0 {
		return true
	}
	return now.Sub(s.DetectionTime) >= s.LoopInterval
}
