package channel

import (
	"sync"
	"testing"
	"time"
)

func TestTryBeginCheckExclusive(t *testing.T) {
	t.Parallel()

	st := &State{}
	if !st.TryBeginCheck() {
		t.Fatal("first TryBeginCheck must succeed")
	}
	if st.TryBeginCheck() {
		t.Fatal("second TryBeginCheck must fail while held")
	}
	st.EndCheck()
	if !st.TryBeginCheck() {
		t.Fatal("TryBeginCheck must succeed after release")
	}
}

func TestTryBeginCheckConcurrent(t *testing.T) {
	t.Parallel()

	st := &State{}
	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.TryBeginCheck() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestStartSessionRequiresLive(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := &State{}
	if st.StartSession(now) {
		t.Fatal("StartSession must refuse an offline channel")
	}
	st.IsLive = true
	if !st.StartSession(now) {
		t.Fatal("StartSession failed for a live channel")
	}
	if !st.IsRecording || st.Status != StatusRecording {
		t.Fatalf("recording=%v status=%s", st.IsRecording, st.Status)
	}
	if st.StartSession(now) {
		t.Fatal("StartSession must refuse an already-recording channel")
	}
}

func TestStopSessionAccumulatesDuration(t *testing.T) {
	t.Parallel()

	start := time.Now()
	st := &State{IsLive: true}
	st.StartSession(start)

	end := start.Add(90 * time.Minute)
	if !st.StopSession(end, true) {
		t.Fatal("StopSession returned false")
	}
	if st.IsRecording || st.IsLive {
		t.Fatal("session flags not cleared")
	}
	if st.LastDuration != 90*time.Minute {
		t.Fatalf("LastDuration = %s, want 90m", st.LastDuration)
	}
	if !st.StartTime.IsZero() || !st.DetectionTime.IsZero() {
		t.Fatal("timers not reset")
	}
	if !st.ManuallyStopped {
		t.Fatal("manual stop not recorded")
	}
	if st.StopSession(end, false) {
		t.Fatal("second StopSession must be a no-op")
	}
}

func TestSessionDuration(t *testing.T) {
	t.Parallel()

	start := time.Now()
	st := &State{IsLive: true}
	st.StartSession(start)
	if got := st.SessionDuration(start.Add(time.Hour)); got != time.Hour {
		t.Fatalf("running duration = %s, want 1h", got)
	}
	st.StopSession(start.Add(2*time.Hour), false)
	if got := st.SessionDuration(start.Add(5 * time.Hour)); got != 2*time.Hour {
		t.Fatalf("stopped duration = %s, want 2h", got)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{59 * time.Second, "0:00:59"},
		{90 * time.Minute, "1:30:00"},
		{25*time.Hour + 5*time.Second, "25:00:05"},
		{-time.Minute, "0:00:00"},
	}
	for _, tc := range tests {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%s) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestDue(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := &State{}
	if !st.Due(now) {
		t.Fatal("never-checked channel must be due")
	}
	st.DetectionTime = now.Add(-2 * time.Minute)
	st.LoopInterval = 5 * time.Minute
	if st.Due(now) {
		t.Fatal("channel inside its interval must not be due")
	}
	st.LoopInterval = time.Minute
	if !st.Due(now) {
		t.Fatal("channel past its interval must be due")
	}
}

func TestRegistryAddAssignsID(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	st := &State{Name: "alpha"}
	if err := r.Add(st); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if st.ID == "" {
		t.Fatal("id not assigned")
	}
	if st.AddedAt.IsZero() {
		t.Fatal("AddedAt not set")
	}
	if err := r.Add(&State{ID: st.ID}); err == nil {
		t.Fatal("duplicate id accepted")
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := &State{Name: "a"}
	b := &State{Name: "b"}
	if err := r.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatalf("Add: %v", err)
	}

	snap := r.All()
	if _, err := r.Remove(a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("snapshot mutated by Remove, len = %d", len(snap))
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if _, ok := r.FindByID(a.ID); ok {
		t.Fatal("removed channel still findable")
	}
}

func TestRegistryOnChangeHook(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var calls int
	r.SetOnChange(func() { calls++ })

	st := &State{Name: "a"}
	if err := r.Add(st); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Remove(st.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	r.Clear()
	r.RequestSave()
	if calls != 4 {
		t.Fatalf("hook calls = %d, want 4", calls)
	}
}

func TestRegistryUpdateAppliesPatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	st := &State{Name: "old", Quality: "best"}
	if err := r.Add(st); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var saves int
	r.SetOnChange(func() { saves++ })

	name := "new"
	push := true
	if err := r.Update(st.ID, Patch{Name: &name, PushEnabled: &push}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if st.Name != "new" || !st.PushEnabled {
		t.Fatalf("patch not applied: %+v", st)
	}
	if st.Quality != "best" {
		t.Fatal("unset patch field mutated")
	}
	if saves != 1 {
		t.Fatalf("saves = %d, want 1", saves)
	}

	// A patch that changes nothing must not fire the hook.
	if err := r.Update(st.ID, Patch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saves != 1 {
		t.Fatalf("no-op patch fired the hook, saves = %d", saves)
	}

	if err := r.Update("missing", Patch{Name: &name}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPatchApplyReportsChanges(t *testing.T) {
	t.Parallel()

	st := &State{Name: "a", MonitorEnabled: true}
	if (Patch{}).Apply(st) {
		t.Fatal("empty patch reported a change")
	}
	same := "a"
	if (Patch{Name: &same}).Apply(st) {
		t.Fatal("identical value reported a change")
	}
	off := false
	if !(Patch{MonitorEnabled: &off}).Apply(st) {
		t.Fatal("real change not reported")
	}
	if st.MonitorEnabled {
		t.Fatal("value not applied")
	}
}
