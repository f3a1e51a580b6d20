// Package resolve defines the stream-resolver collaborator contract.
// Platform-specific URL rules live in the external resolver tool, not here.
package resolve

import (
	"context"
	"net/url"
	"strings"
)

// StreamInfo is the result of one liveness resolution.
// Offline is a normal result, not an error; an incomplete result (empty
// AnchorName) is treated by the prober as a check failure.
type StreamInfo struct {
	IsLive     bool
	AnchorName string
	Title      string
}

// Resolver resolves a channel URL into live status and stream metadata.
//
// Implementations must be safe for concurrent use up to the per-platform
// permit count, and must not return an error for ordinary offline status.
type Resolver interface {
	Resolve(ctx context.Context, rawURL, platformHint string) (StreamInfo, error)
}

// KeyFromURL derives a stable platform key from a channel URL's host
// ("https://live.example.com/room/1" -> "example"). The key only needs to be
// stable per platform; it groups channels under one concurrency permit pool.
func KeyFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}
