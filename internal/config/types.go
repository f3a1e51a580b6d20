package config

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Monitor MonitorConfig `json:"monitor"`

	// Storage controls where channel documents persist. Nil means disabled
	// (in-memory only, nothing survives a restart).
	Storage *StorageConfig `json:"storage,omitempty"`

	// Notify controls the notification pipeline. Nil defaults to enabled
	// desktop notifications with push disabled.
	Notify *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MonitorConfig controls the polling scheduler.
//
// All durations are Go duration strings (e.g. "30s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - base_interval: "300s"
//   - heartbeat: "30s"
//   - alpha_active: 0.1
//   - alpha_offline: 0.01
//   - platform_max_concurrent: 3
//   - retry_count: 2, retry_delay: "20s"
//   - notify_interval: "600s"
//   - jitter_min: "2s", jitter_max: "5s"
type MonitorConfig struct {
	Enabled      bool   `json:"enabled"`
	BaseInterval string `json:"base_interval,omitempty"`
	Heartbeat    string `json:"heartbeat,omitempty"`
	CheckOnStart bool   `json:"check_on_start"`

	AlphaActive  float64 `json:"alpha_active,omitempty"`
	AlphaOffline float64 `json:"alpha_offline,omitempty"`

	PlatformMaxConcurrent int64 `json:"platform_max_concurrent,omitempty"`

	RetryCount int    `json:"retry_count,omitempty"`
	RetryDelay string `json:"retry_delay,omitempty"`

	NotifyInterval string `json:"notify_interval,omitempty"`

	JitterMin string `json:"jitter_min,omitempty"`
	JitterMax string `json:"jitter_max,omitempty"`

	// Disk guard: below this many free GB under output_dir, new recordings
	// are suspended globally.
	SpaceThresholdGB float64 `json:"space_threshold_gb,omitempty"`
	OutputDir        string  `json:"output_dir,omitempty"`

	QueueSize int `json:"queue_size,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./streamwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type NotifyConfig struct {
	Enabled     bool `json:"enabled"`
	PushEnabled bool `json:"push_enabled"`
	QueueSize   int  `json:"queue_size,omitempty"`
	RatePerSec  int  `json:"rate_per_sec,omitempty"`

	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Templates TemplatesConfig `json:"templates,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// TemplatesConfig carries push message templates. Placeholders [room_name],
// [title], [time], [url] and [platform] are expanded per message.
type TemplatesConfig struct {
	LiveStartTitle   string `json:"live_start_title,omitempty"`
	LiveStartContent string `json:"live_start_content,omitempty"`
	LiveEndTitle     string `json:"live_end_title,omitempty"`
	LiveEndContent   string `json:"live_end_content,omitempty"`
}
