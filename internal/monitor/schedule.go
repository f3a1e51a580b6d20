package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// defaultWindowHours applies when a start time has no matching hours entry.
const defaultWindowHours = 5

type window struct {
	startMin int // minutes after midnight
	durMin   int
}

func (w window) contains(minOfDay int) bool {
	// Windows may wrap midnight: "23:00" + 3h covers 23:00..02:00.
	offset := (minOfDay - w.startMin + 24*60) % (24 * 60)
	return offset < w.durMin
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// parseWindows builds the daily check windows from a comma-separated list of
// HH:MM start times and a parallel comma-separated list of hour spans. A
// missing or empty span entry falls back to defaultWindowHours.
func parseWindows(startTimes, hourSpans string) ([]window, error) {
	startTimes = strings.TrimSpace(startTimes)
	if startTimes == "" {
		return nil, nil
	}
	starts := strings.Split(startTimes, ",")
	spans := strings.Split(hourSpans, ",")

	out := make([]window, 0, len(starts))
	for i, raw := range starts {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		startMin, err := parseHHMM(raw)
		if err != nil {
			return nil, err
		}
		hours := defaultWindowHours
		if i < len(spans) {
			sp := strings.TrimSpace(spans[i])
			if sp != "" {
				h, err := strconv.Atoi(sp)
				if err != nil || h <= 0 || h > 24 {
					return nil, fmt.Errorf("invalid hour span %q", sp)
				}
				hours = h
			}
		}
		out = append(out, window{startMin: startMin, durMin: hours * 60})
	}
	return out, nil
}

// inScheduledWindow reports whether now falls inside any configured check
// window. An empty configuration means no restriction. A malformed
// configuration also returns true: a typo must not silently stop checks.
func inScheduledWindow(startTimes, hourSpans string, now time.Time) bool {
	wins, err := parseWindows(startTimes, hourSpans)
	if err != nil || len(wins) == 0 {
		return true
	}
	minOfDay := now.Hour()*60 + now.Minute()
	for _, w := range wins {
		if w.contains(minOfDay) {
			return true
		}
	}
	return false
}
