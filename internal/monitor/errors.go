package monitor

import "errors"

var (
	// ErrResolveFailed wraps a resolver call that failed or returned an
	// incomplete result. Recoverable: the channel keeps its normal cadence.
	ErrResolveFailed = errors.New("stream resolution failed")

	// ErrNoRecorder is returned by stop requests when no recorder handle is
	// registered for the channel.
	ErrNoRecorder = errors.New("no active recorder")
)
