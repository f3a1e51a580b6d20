package monitor

import (
	"context"
	"sort"
	"time"

	"streamwatch/internal/channel"
	"streamwatch/internal/eventbus"
	"streamwatch/internal/predict"
	logx "streamwatch/pkg/logx"
)

// CycleSummary is the per-cycle accounting published on the bus and logged.
type CycleSummary struct {
	Channels   int           `json:"channels"`
	Recording  int           `json:"recording"`
	Dispatched int           `json:"dispatched"`
	Busy       int           `json:"busy"`
	Dropped    int           `json:"dropped"`
	Fast       int           `json:"fast"`
	Medium     int           `json:"medium"`
	Slow       int           `json:"slow"`
	FreeGB     float64       `json:"free_gb"`
	Took       time.Duration `json:"took"`
}

type candidate struct {
	st       *channel.State
	score    float64
	tiebreak float64
}

// RunCycle performs one dispatcher pass: refresh the disk guard, score every
// monitored channel, lane the due ones, and request a single debounced save
// covering all mutations made this cycle.
func (s *Service) RunCycle(ctx context.Context) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	started := time.Now()
	cfg := s.config()
	now := time.Now()

	sum := CycleSummary{}
	sum.FreeGB = s.refreshDiskGuard(cfg)

	var due []candidate
	for _, st := range s.reg.All() {
		if !st.MonitorEnabled {
			continue
		}
		sum.Channels++

		// One writer per channel: take probe ownership before reading or
		// writing any learned state. A held flag means a probe or stop
		// routine owns the channel right now; skip it entirely.
		if !st.TryBeginCheck() {
			sum.Busy++
			continue
		}

		// Recording channels only feed the pattern learner; no probe is spent.
		if st.IsRecording {
			predict.Observe(st, true, now, cfg.AlphaActive, cfg.AlphaOffline)
			sum.Recording++
			st.EndCheck()
			continue
		}

		if st.NotifyOnly && st.IsLive && st.NotifiedLiveStart {
			// Broadcasting, not recording: hold the reduced cadence until the
			// stream ends.
			st.LoopInterval = cfg.NotifyInterval
		} else {
			st.LoopInterval = predict.AdjustedInterval(st, cfg.BaseInterval, now)
		}
		if !st.Due(now) {
			st.EndCheck()
			continue
		}
		due = append(due, candidate{st: st, score: st.PriorityScore, tiebreak: s.randFloat()})
	}

	// Highest learned priority first; the random tiebreak only prevents
	// starvation among equal scores.
	sort.Slice(due, func(i, j int) bool {
		if due[i].score != due[j].score {
			return due[i].score > due[j].score
		}
		return due[i].tiebreak > due[j].tiebreak
	})

	// Ownership taken during selection is carried into the lane; the worker
	// releases it when probeOwned returns.
	for _, c := range due {
		st := c.st
		lane, q := s.laneFor(st.LoopInterval)
		select {
		case q <- st:
			sum.Dispatched++
			switch lane {
			case "fast":
				sum.Fast++
			case "medium":
				sum.Medium++
			default:
				sum.Slow++
			}
		default:
			// Lane full: release ownership, the channel stays due next cycle.
			st.EndCheck()
			sum.Dropped++
		}
	}

	// One debounced write covers every mutation made this pass.
	s.reg.RequestSave()

	sum.Took = time.Since(started)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.EventCycleSummary, Data: sum})
	}
	s.log.Debug("dispatch cycle",
		logx.Int("channels", sum.Channels),
		logx.Int("recording", sum.Recording),
		logx.Int("dispatched", sum.Dispatched),
		logx.Int("busy", sum.Busy),
		logx.Int("dropped", sum.Dropped),
		logx.Int("fast", sum.Fast),
		logx.Int("medium", sum.Medium),
		logx.Int("slow", sum.Slow),
		logx.Duration("took", sum.Took))
}

func (s *Service) laneFor(interval time.Duration) (string, chan *channel.State) {
	switch {
	case interval <= laneFastMax:
		return "fast", s.fastQ
	case interval <= laneMediumMax:
		return "medium", s.mediumQ
	default:
		return "slow", s.slowQ
	}
}

// refreshDiskGuard updates the global recording gate from free space under the
// output dir. Transitions are logged once, not every cycle.
func (s *Service) refreshDiskGuard(cfg Config) float64 {
	if cfg.SpaceThresholdGB <= 0 {
		s.recordingEnabled.Store(true)
		return 0
	}
	free, err := freeGB(cfg.OutputDir)
	if err != nil {
		s.log.Warn("disk space check failed", logx.String("dir", cfg.OutputDir), logx.Err(err))
		return 0
	}
	below := free < cfg.SpaceThresholdGB
	was := s.recordingEnabled.Load()
	if below && was {
		s.recordingEnabled.Store(false)
		s.log.Error("free space below threshold, new recordings suspended",
			logx.Float64("free_gb", free),
			logx.Float64("threshold_gb", cfg.SpaceThresholdGB))
	} else if !below && !was {
		s.recordingEnabled.Store(true)
		s.log.Info("free space recovered, recordings re-enabled",
			logx.Float64("free_gb", free))
	}
	return free
}
