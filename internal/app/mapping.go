package app

import (
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/monitor"
	"streamwatch/internal/notify"
	"streamwatch/internal/storage"
)

// monitorConfig maps the file-level monitor section (durations as strings)
// onto the monitor service config. Omitted fields fall back to the service
// defaults.
func monitorConfig(cfg *config.Config) (monitor.Config, error) {
	m := cfg.Monitor

	base, err := config.ParseDurationOrDefault("monitor.base_interval", m.BaseInterval, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	heartbeat, err := config.ParseDurationOrDefault("monitor.heartbeat", m.Heartbeat, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	retryDelay, err := config.ParseDurationOrDefault("monitor.retry_delay", m.RetryDelay, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	notifyInterval, err := config.ParseDurationOrDefault("monitor.notify_interval", m.NotifyInterval, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	jitterMin, err := config.ParseDurationOrDefault("monitor.jitter_min", m.JitterMin, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	jitterMax, err := config.ParseDurationOrDefault("monitor.jitter_max", m.JitterMax, 0)
	if err != nil {
		return monitor.Config{}, err
	}

	return monitor.Config{
		Enabled:               m.Enabled,
		BaseInterval:          base,
		Heartbeat:             heartbeat,
		CheckOnStart:          m.CheckOnStart,
		AlphaActive:           m.AlphaActive,
		AlphaOffline:          m.AlphaOffline,
		PlatformMaxConcurrent: m.PlatformMaxConcurrent,
		Retry: monitor.RetryConfig{
			Count: m.RetryCount,
			Delay: retryDelay,
		},
		NotifyInterval:   notifyInterval,
		JitterMin:        jitterMin,
		JitterMax:        jitterMax,
		SpaceThresholdGB: m.SpaceThresholdGB,
		OutputDir:        m.OutputDir,
		QueueSize:        m.QueueSize,
	}, nil
}

func notifyConfig(cfg *config.Config) notify.Config {
	n := cfg.Notify
	if n == nil {
		return notify.Config{Enabled: true}
	}
	return notify.Config{
		Enabled:     n.Enabled,
		PushEnabled: n.PushEnabled,
		QueueSize:   n.QueueSize,
		RatePerSec:  n.RatePerSec,
		Telegram: notify.TelegramConfig{
			Token:  n.Telegram.Token,
			ChatID: n.Telegram.ChatID,
		},
		Templates: notify.Templates{
			LiveStartTitle:   n.Templates.LiveStartTitle,
			LiveStartContent: n.Templates.LiveStartContent,
			LiveEndTitle:     n.Templates.LiveEndTitle,
			LiveEndContent:   n.Templates.LiveEndContent,
		},
	}
}

func storageConfig(cfg *config.Config) (storage.Config, error) {
	s := cfg.Storage
	if s == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		BusyTimeout: busy,
	}, nil
}
