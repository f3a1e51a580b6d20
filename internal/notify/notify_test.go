package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "streamwatch/pkg/logx"
)

func TestRender(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 14, 21, 5, 0, 0, time.Local)
	v := Vars{
		RoomName: "alpha",
		Title:    "speedrun%",
		URL:      "https://example.com/alpha",
		Platform: "example",
		Time:     at,
	}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{"all placeholders", "[room_name] live: [title] ([platform]) at [time]",
			"alpha live: speedrun% (example) at 2025-03-14 21:05:00"},
		{"url", "watch [url]", "watch https://example.com/alpha"},
		{"unknown bracket kept", "[room_name] [nope]", "alpha [nope]"},
		{"empty template", "", ""},
		{"repeated placeholder", "[room_name]/[room_name]", "alpha/alpha"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Render(tc.tpl, v); got != tc.want {
				t.Fatalf("Render(%q) = %q, want %q", tc.tpl, got, tc.want)
			}
		})
	}
}

func TestRenderOrFallsBack(t *testing.T) {
	t.Parallel()

	v := Vars{RoomName: "alpha", Time: time.Now()}
	if got := RenderOr("  ", "[room_name] is live", v); got != "alpha is live" {
		t.Fatalf("RenderOr = %q", got)
	}
	if got := RenderOr("custom [room_name]", "[room_name] is live", v); got != "custom alpha" {
		t.Fatalf("RenderOr = %q", got)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	titles []string
	texts  []string
	err    error
}

func (r *recordingSink) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSink) Push(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func (r *recordingSink) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...), append([]string(nil), r.texts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceDeliversDesktopAndPush(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := New(Config{Enabled: true, PushEnabled: true, RatePerSec: 100}, sink, sink, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Notify("going live", "alpha started")
	s.Push("going live", "alpha started")

	waitFor(t, func() bool {
		titles, texts := sink.snapshot()
		return len(titles) == 1 && len(texts) == 1
	})

	_, texts := sink.snapshot()
	if texts[0] != "going live\nalpha started" {
		t.Fatalf("push text = %q", texts[0])
	}

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	s.Stop(sctx)
}

func TestServiceDisabledDropsSilently(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := New(Config{Enabled: false}, sink, sink, logx.Nop())
	s.Start(context.Background())
	s.Notify("x", "y")
	s.Push("x", "y")
	time.Sleep(20 * time.Millisecond)
	titles, texts := sink.snapshot()
	if len(titles) != 0 || len(texts) != 0 {
		t.Fatalf("expected nothing delivered, got %d/%d", len(titles), len(texts))
	}
}

func TestServicePushDisabledSkipsPushOnly(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := New(Config{Enabled: true, PushEnabled: false, RatePerSec: 100}, sink, sink, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Push("x", "y")
	s.Notify("x", "y")

	waitFor(t, func() bool {
		titles, _ := sink.snapshot()
		return len(titles) == 1
	})
	_, texts := sink.snapshot()
	if len(texts) != 0 {
		t.Fatalf("expected no push sends, got %d", len(texts))
	}

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	s.Stop(sctx)
}

func TestServiceSendErrorDoesNotStopWorker(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("boom")}
	s := New(Config{Enabled: true, RatePerSec: 100}, sink, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	s.Notify("a", "1")
	s.Notify("b", "2")

	waitFor(t, func() bool {
		titles, _ := sink.snapshot()
		return len(titles) == 2
	})

	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	s.Stop(sctx)
}

func TestServiceStopDrainsQueue(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	s := New(Config{Enabled: true, RatePerSec: 100, QueueSize: 8}, sink, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	for i := 0; i < 5; i++ {
		s.Notify("t", "m")
	}

	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	s.Stop(sctx)

	titles, _ := sink.snapshot()
	if len(titles) != 5 {
		t.Fatalf("expected 5 delivered after drain, got %d", len(titles))
	}
}
