package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// StreamlinkResolver resolves liveness by shelling out to streamlink's JSON
// mode. Streamlink carries the per-platform URL rules, so this side stays
// platform-agnostic: one invocation, one parsed payload.
type StreamlinkResolver struct {
	Bin       string
	Timeout   time.Duration
	ExtraArgs []string
}

func NewStreamlink(bin string, timeout time.Duration) *StreamlinkResolver {
	if bin == "" {
		bin = "streamlink"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StreamlinkResolver{Bin: bin, Timeout: timeout}
}

type streamlinkPayload struct {
	Error    string `json:"error"`
	Metadata struct {
		Author string `json:"author"`
		Title  string `json:"title"`
	} `json:"metadata"`
}

func (r *StreamlinkResolver) Resolve(ctx context.Context, rawURL, _ string) (StreamInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := make([]string, 0, len(r.ExtraArgs)+2)
	args = append(args, r.ExtraArgs...)
	args = append(args, "--json", rawURL)

	// Streamlink prints the JSON payload to stdout even on its error exit
	// code, so the exit status alone is not a failure signal.
	out, runErr := exec.CommandContext(ctx, r.Bin, args...).Output()
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		if ctx.Err() != nil {
			return StreamInfo{}, ctx.Err()
		}
		return StreamInfo{}, fmt.Errorf("streamlink produced no output: %w", runErr)
	}

	var payload streamlinkPayload
	if err := json.Unmarshal(out, &payload); err != nil {
		return StreamInfo{}, fmt.Errorf("parse streamlink output: %w", err)
	}
	if payload.Error != "" {
		if offlineError(payload.Error) {
			return StreamInfo{IsLive: false}, nil
		}
		return StreamInfo{}, fmt.Errorf("streamlink: %s", payload.Error)
	}

	author := strings.TrimSpace(payload.Metadata.Author)
	if author == "" {
		author = KeyFromURL(rawURL)
	}
	return StreamInfo{
		IsLive:     true,
		AnchorName: author,
		Title:      payload.Metadata.Title,
	}, nil
}

// offlineError reports whether a streamlink error payload means "not live
// right now" as opposed to a genuine resolution failure.
func offlineError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "no playable streams")
}
