// Package record captures live streams by shelling out to streamlink. The
// monitor owns lifecycle decisions; this package only runs the process and
// reports when it ends.
package record

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"streamwatch/internal/channel"
	"streamwatch/internal/monitor"
	"streamwatch/internal/resolve"
	logx "streamwatch/pkg/logx"
)

type Config struct {
	// Bin is the streamlink executable. Default "streamlink" (resolved on PATH).
	Bin string
	// OutputDir is the root for captured files; one subdirectory per channel.
	OutputDir string
	// ExtraArgs are passed through before the URL (proxies, retry knobs).
	ExtraArgs []string
	// StopGrace bounds a cooperative stop before the process is killed.
	StopGrace time.Duration
}

type Streamlink struct {
	cfg Config
	log logx.Logger
}

func NewStreamlink(cfg Config, log logx.Logger) *Streamlink {
	if cfg.Bin == "" {
		cfg.Bin = "streamlink"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./recordings"
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Streamlink{cfg: cfg, log: log}
}

// Start launches one capture session. The process deliberately does not
// inherit the probe context: a probe timeout must not tear down a recording.
func (r *Streamlink) Start(_ context.Context, st *channel.State, info resolve.StreamInfo) (monitor.RecorderHandle, error) {
	quality := strings.TrimSpace(st.Quality)
	if quality == "" {
		quality = "best"
	}
	format := strings.TrimSpace(st.RecordFormat)
	if format == "" {
		format = "ts"
	}

	dir := filepath.Join(r.cfg.OutputDir, sanitize(st.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(dir, fmt.Sprintf("%s_%s.%s",
		sanitize(st.Name), time.Now().Format("20060102_150405"), format))

	args := make([]string, 0, len(r.cfg.ExtraArgs)+4)
	args = append(args, r.cfg.ExtraArgs...)
	args = append(args, "--output", out, st.URL, quality)

	log := r.log.With(logx.String("channel", st.Name))
	cmd := exec.Command(r.cfg.Bin, args...)
	cmd.Stdout = newLineWriter(log, "stdout")
	cmd.Stderr = newLineWriter(log, "stderr")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.cfg.Bin, err)
	}

	log.Info("capture started",
		logx.String("file", out),
		logx.String("quality", quality),
		logx.String("title", info.Title))

	h := &handle{cmd: cmd, grace: r.cfg.StopGrace, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if err != nil && !h.stopAsked.Load() {
			log.Warn("capture process exited", logx.Err(err))
		} else {
			log.Info("capture process ended")
		}
		close(h.done)
	}()
	return h, nil
}

type handle struct {
	cmd       *exec.Cmd
	grace     time.Duration
	done      chan struct{}
	stopAsked atomic.Bool
}

// RequestStop signals the process to finish writing and exit; past the grace
// period it is killed.
func (h *handle) RequestStop(ctx context.Context) error {
	if h.stopAsked.Swap(true) {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(h.grace):
	case <-ctx.Done():
	}
	_ = h.cmd.Process.Kill()
	return nil
}

func (h *handle) ShouldStop() bool {
	if h.stopAsked.Load() {
		return true
	}
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) Done() <-chan struct{} { return h.done }

func sanitize(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return "channel"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
