package monitor

import "time"

type RetryConfig struct {
	Count int           `json:"count" yaml:"count"`
	Delay time.Duration `json:"-" yaml:"-"`
}

type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BaseInterval is the neutral polling interval before the predictor
	// reshapes it per channel.
	BaseInterval time.Duration `json:"-" yaml:"-"`
	// Heartbeat drives the dispatcher cycle.
	Heartbeat time.Duration `json:"-" yaml:"-"`
	// CheckOnStart runs one dispatcher cycle immediately at startup instead of
	// waiting for the first heartbeat.
	CheckOnStart bool `json:"check_on_start" yaml:"check_on_start"`

	// EMA smoothing factors for live and offline observations.
	AlphaActive  float64 `json:"alpha_active" yaml:"alpha_active"`
	AlphaOffline float64 `json:"alpha_offline" yaml:"alpha_offline"`

	// PlatformMaxConcurrent bounds simultaneous probes per platform key.
	PlatformMaxConcurrent int64 `json:"platform_max_concurrent" yaml:"platform_max_concurrent"`

	Retry RetryConfig `json:"retry" yaml:"retry"`

	// NotifyInterval is the reduced cadence for channels that are live in
	// notify-only mode (broadcasting, not recording).
	NotifyInterval time.Duration `json:"-" yaml:"-"`

	// Jitter bounds applied before each outbound probe.
	JitterMin time.Duration `json:"-" yaml:"-"`
	JitterMax time.Duration `json:"-" yaml:"-"`

	// Disk guard: when OutputDir has less than SpaceThresholdGB free,
	// new recording sessions are suspended globally.
	SpaceThresholdGB float64 `json:"space_threshold_gb" yaml:"space_threshold_gb"`
	OutputDir        string  `json:"output_dir" yaml:"output_dir"`

	// Lane queue capacity. A full lane drops the enqueue for that cycle.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = 300 * time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 30 * time.Second
	}
	if c.AlphaActive <= 0 {
		c.AlphaActive = 0.1
	}
	if c.AlphaOffline <= 0 {
		c.AlphaOffline = 0.01
	}
	if c.PlatformMaxConcurrent <= 0 {
		c.PlatformMaxConcurrent = 3
	}
	if c.Retry.Count < 0 {
		c.Retry.Count = 0
	}
	if c.Retry.Count == 0 {
		c.Retry.Count = 2
	}
	if c.Retry.Delay <= 0 {
		c.Retry.Delay = 20 * time.Second
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = 600 * time.Second
	}
	if c.JitterMin <= 0 {
		c.JitterMin = 2 * time.Second
	}
	if c.JitterMax <= c.JitterMin {
		c.JitterMax = c.JitterMin + 3*time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}
