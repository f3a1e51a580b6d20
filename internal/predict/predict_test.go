package predict

import (
	"math"
	"strconv"
	"testing"
	"time"

	"streamwatch/internal/channel"
)

// tuesdayAt returns a fixed Tuesday with the given wall clock.
func tuesdayAt(hour, min int) time.Time {
	// 2025-06-10 is a Tuesday.
	return time.Date(2025, 6, 10, hour, min, 0, 0, time.Local)
}

func TestLikelihood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history map[string][]int
		now     time.Time
		want    float64
	}{
		{"no history is neutral", nil, tuesdayAt(12, 0), 0.5},
		{"empty history is neutral", map[string][]int{}, tuesdayAt(12, 0), 0.5},
		{"day absent", map[string][]int{"3": {20}}, tuesdayAt(20, 0), 0.2},
		{"current hour known", map[string][]int{"2": {20}}, tuesdayAt(20, 15), 1.0},
		{"next hour at start of ramp", map[string][]int{"2": {21}}, tuesdayAt(20, 0), 0.5},
		{"next hour mid ramp", map[string][]int{"2": {21}}, tuesdayAt(20, 30), 0.7},
		{"next hour end of ramp", map[string][]int{"2": {21}}, tuesdayAt(20, 45), 0.8},
		{"far from known hours", map[string][]int{"2": {20}}, tuesdayAt(3, 0), 0.1},
		{"midnight wrap to next day hour zero", map[string][]int{"2": {0}}, tuesdayAt(23, 30), 0.7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st := &channel.State{HistoricalIntervals: tc.history}
			got := Likelihood(st, tc.now)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Likelihood = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdjustedInterval(t *testing.T) {
	t.Parallel()

	base := 300 * time.Second
	tests := []struct {
		name    string
		history map[string][]int
		now     time.Time
		want    time.Duration
	}{
		{"current hour yields fast interval", map[string][]int{"2": {20}}, tuesdayAt(20, 15), 60 * time.Second},
		{"neutral halves the base", nil, tuesdayAt(12, 0), 150 * time.Second},
		{"day miss doubles the base", map[string][]int{"3": {20}}, tuesdayAt(12, 0), 600 * time.Second},
		{"far hours double the base", map[string][]int{"2": {20}}, tuesdayAt(3, 0), 600 * time.Second},
		{"mid ramp halves the base", map[string][]int{"2": {21}}, tuesdayAt(20, 30), 150 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st := &channel.State{HistoricalIntervals: tc.history}
			if got := AdjustedInterval(st, base, tc.now); got != tc.want {
				t.Fatalf("AdjustedInterval = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAdjustedIntervalHighLikelihoodIgnoresBase(t *testing.T) {
	t.Parallel()

	st := &channel.State{HistoricalIntervals: map[string][]int{"2": {20}}}
	now := tuesdayAt(20, 15)
	for _, base := range []time.Duration{30 * time.Second, 300 * time.Second, time.Hour} {
		if got := AdjustedInterval(st, base, now); got != 60*time.Second {
			t.Fatalf("AdjustedInterval(base=%s) = %s, want 60s", base, got)
		}
	}
}

func TestObserveEMAConvergence(t *testing.T) {
	t.Parallel()

	st := &channel.State{}
	now := tuesdayAt(20, 0)
	for i := 0; i < 10; i++ {
		Observe(st, true, now, 0.1, 0.01)
	}
	want := 1 - math.Pow(0.9, 10) // ≈ 0.651
	if math.Abs(st.PriorityScore-want) > 0.01 {
		t.Fatalf("PriorityScore after 10 live observations = %v, want ≈%v", st.PriorityScore, want)
	}
}

func TestObserveOfflineDecaysSlowly(t *testing.T) {
	t.Parallel()

	st := &channel.State{PriorityScore: 0.8}
	Observe(st, false, tuesdayAt(20, 0), 0.1, 0.01)
	want := 0.8 * 0.99
	if math.Abs(st.PriorityScore-want) > 1e-9 {
		t.Fatalf("PriorityScore = %v, want %v", st.PriorityScore, want)
	}
}

func TestObserveHistoryCapAndEviction(t *testing.T) {
	t.Parallel()

	st := &channel.State{}
	day := tuesdayAt(0, 0)
	for h := 10; h <= 16; h++ { // 7 distinct hours on the same weekday
		Observe(st, true, day.Add(time.Duration(h)*time.Hour), 0.1, 0.01)
	}

	key := strconv.Itoa(int(day.Weekday()))
	hours := st.HistoricalIntervals[key]
	if len(hours) != 5 {
		t.Fatalf("hours = %v, want 5 entries", hours)
	}
	// Oldest two evicted.
	want := []int{12, 13, 14, 15, 16}
	for i := range want {
		if hours[i] != want[i] {
			t.Fatalf("hours = %v, want %v", hours, want)
		}
	}
}

func TestObserveSameHourNotDuplicated(t *testing.T) {
	t.Parallel()

	st := &channel.State{}
	now := tuesdayAt(20, 10)
	Observe(st, true, now, 0.1, 0.01)
	Observe(st, true, now.Add(5*time.Minute), 0.1, 0.01)

	key := strconv.Itoa(int(now.Weekday()))
	if got := st.HistoricalIntervals[key]; len(got) != 1 {
		t.Fatalf("hours = %v, want single entry", got)
	}
}

func TestObserveConsistencyScore(t *testing.T) {
	t.Parallel()

	st := &channel.State{
		HistoricalIntervals: map[string][]int{
			"1": {10, 11, 12},
			"2": {20},
		},
	}
	Observe(st, false, tuesdayAt(3, 0), 0.1, 0.01)
	// 4 slots over 2 days × 5 = 0.4
	if math.Abs(st.ConsistencyScore-0.4) > 1e-9 {
		t.Fatalf("ConsistencyScore = %v, want 0.4", st.ConsistencyScore)
	}
}

func TestObserveRecencyDecay(t *testing.T) {
	t.Parallel()

	now := tuesdayAt(20, 0)
	st := &channel.State{
		PriorityScore:       0.5,
		LastSeenLive:        now.AddDate(0, 0, -40),
		HistoricalIntervals: map[string][]int{"2": {20}},
	}
	before := st.PriorityScore
	Observe(st, false, now, 0.1, 0.01)

	// 10 extra decay days past the 30-day grace window.
	want := before * (1 - 0.01) * math.Pow(0.99, 10)
	if math.Abs(st.PriorityScore-want) > 1e-9 {
		t.Fatalf("PriorityScore = %v, want %v", st.PriorityScore, want)
	}
	if st.PriorityScore >= before {
		t.Fatal("decay must strictly reduce the score")
	}
}

func TestObserveDecayCappedAtSixtyDays(t *testing.T) {
	t.Parallel()

	now := tuesdayAt(20, 0)
	mk := func(daysAgo int) *channel.State {
		return &channel.State{
			PriorityScore:       0.5,
			LastSeenLive:        now.AddDate(0, 0, -daysAgo),
			HistoricalIntervals: map[string][]int{"2": {20}},
		}
	}
	a := mk(90)  // 60 decay days (cap)
	b := mk(400) // far beyond the cap
	Observe(a, false, now, 0.1, 0.01)
	Observe(b, false, now, 0.1, 0.01)
	if math.Abs(a.PriorityScore-b.PriorityScore) > 1e-9 {
		t.Fatalf("decay not capped: %v vs %v", a.PriorityScore, b.PriorityScore)
	}
}

func TestObserveLegacyCounterHalving(t *testing.T) {
	t.Parallel()

	st := &channel.State{LiveCheckCount: 100, LiveFoundCount: 60}
	Observe(st, true, tuesdayAt(20, 0), 0.1, 0.01)
	// 101 > 100 triggers the halving. 101/2 and 61/2 in integer math.
	if st.LiveCheckCount != 50 || st.LiveFoundCount != 30 {
		t.Fatalf("counters = %d/%d, want 50/30", st.LiveCheckCount, st.LiveFoundCount)
	}
}

func TestObserveFreshChannelScoreAfterOneObservation(t *testing.T) {
	t.Parallel()

	st := &channel.State{}
	Observe(st, true, tuesdayAt(20, 0), 0.1, 0.01)
	if math.Abs(st.PriorityScore-0.1) > 1e-9 {
		t.Fatalf("PriorityScore = %v, want 0.1", st.PriorityScore)
	}
	if st.LastSeenLive.IsZero() {
		t.Fatal("LastSeenLive not set")
	}
}
