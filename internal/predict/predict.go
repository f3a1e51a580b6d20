// Package predict derives polling decisions from a channel's learned on-air
// pattern: a live-likelihood score, an adjusted polling interval, and the
// EMA/history update applied after every observation.
package predict

import (
	"math"
	"strconv"
	"time"

	"streamwatch/internal/channel"
)

const (
	// DefaultAlphaActive reacts quickly to live observations.
	DefaultAlphaActive = 0.1
	// DefaultAlphaOffline decays slowly on offline observations.
	DefaultAlphaOffline = 0.01

	// maxHoursPerDay caps the learned hour slots per weekday; the oldest entry
	// is evicted so schedule shifts are picked up within a few sessions.
	maxHoursPerDay = 5

	// FastInterval is the polling interval inside a high-probability window.
	FastInterval = 60 * time.Second
)

// dayKey uses Go's weekday numbering (Sunday=0) as the history map key.
func dayKey(now time.Time) string {
	return strconv.Itoa(int(now.Weekday()))
}

// Likelihood scores how likely the channel is to be live at now, in [0,1].
//
//	no history            -> 0.5 (neutral)
//	day absent            -> 0.2
//	current hour known    -> 1.0
//	next hour known       -> 0.5..0.9 ramp across the current hour
//	otherwise             -> 0.1
func Likelihood(st *channel.State, now time.Time) float64 {
	if len(st.HistoricalIntervals) == 0 {
		return 0.5
	}

	hours, ok := st.HistoricalIntervals[dayKey(now)]
	if !ok || len(hours) == 0 {
		return 0.2
	}

	cur := now.Hour()
	if containsHour(hours, cur) {
		return 1.0
	}

	// Approaching a known start hour: ramp up as the current hour progresses.
	next := (cur + 1) % 24
	if containsHour(hours, next) {
		minuteProgress := float64(now.Minute()) / 60.0
		return 0.5 + 0.4*minuteProgress
	}

	return 0.1
}

// AdjustedInterval maps the likelihood onto the next polling interval.
// High-probability windows always poll at FastInterval regardless of base.
func AdjustedInterval(st *channel.State, base time.Duration, now time.Time) time.Duration {
	likelihood := Likelihood(st, now)
	switch {
	case likelihood >= 0.9:
		return FastInterval
	case likelihood >= 0.5:
		return base / 2
	case likelihood <= 0.2:
		return base * 2
	default:
		return base
	}
}

// Observe folds one liveness observation into the channel's learned state:
// historical weekday/hour slots, consistency, the priority EMA, recency decay,
// and the bounded legacy counters.
func Observe(st *channel.State, live bool, now time.Time, alphaActive, alphaOffline float64) {
	if alphaActive <= 0 {
		alphaActive = DefaultAlphaActive
	}
	if alphaOffline <= 0 {
		alphaOffline = DefaultAlphaOffline
	}

	// 1. Historical pattern.
	if live {
		if st.HistoricalIntervals == nil {
			st.HistoricalIntervals = map[string][]int{}
		}
		day := dayKey(now)
		hours := st.HistoricalIntervals[day]
		if !containsHour(hours, now.Hour()) {
			hours = append(hours, now.Hour())
			if len(hours) > maxHoursPerDay {
				hours = hours[len(hours)-maxHoursPerDay:]
			}
			st.HistoricalIntervals[day] = hours
		}
		st.LastSeenLive = now
	}

	// 2. Consistency: how full the learned 5-slot windows are.
	if len(st.HistoricalIntervals) > 0 {
		total := 0
		for _, hours := range st.HistoricalIntervals {
			total += len(hours)
		}
		st.ConsistencyScore = float64(total) / (float64(len(st.HistoricalIntervals)) * maxHoursPerDay)
	}

	// 3. EMA. The priority score is only ever written here.
	alpha := alphaOffline
	observed := 0.0
	if live {
		alpha = alphaActive
		observed = 1.0
	}
	st.PriorityScore = st.PriorityScore*(1-alpha) + observed*alpha

	// 4. Recency decay: channels dormant past 30 days fall toward zero even
	// with a stale EMA. The extra decay is capped at 60 days.
	if !st.LastSeenLive.IsZero() {
		daysInactive := int(now.Sub(st.LastSeenLive).Hours() / 24)
		if daysInactive > 30 {
			decayDays := daysInactive - 30
			if decayDays > 60 {
				decayDays = 60
			}
			st.PriorityScore *= math.Pow(0.99, float64(decayDays))
		}
	}

	// 5. Legacy counters, halved past 100 to bound the integer footprint
	// without resetting the EMA (the EMA is the scheduling signal).
	st.LiveCheckCount++
	if live {
		st.LiveFoundCount++
	}
	if st.LiveCheckCount > 100 {
		st.LiveCheckCount /= 2
		st.LiveFoundCount /= 2
	}
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}
