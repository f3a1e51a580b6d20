package config

import (
	"reflect"
	"sort"
	"strings"

	logx "streamwatch/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Monitor
	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.Bool("monitor.enabled", newCfg.Monitor.Enabled),
			logx.String("monitor.base_interval", strings.TrimSpace(newCfg.Monitor.BaseInterval)),
			logx.String("monitor.heartbeat", strings.TrimSpace(newCfg.Monitor.Heartbeat)),
			logx.Bool("monitor.check_on_start", newCfg.Monitor.CheckOnStart),
			logx.Float64("monitor.space_threshold_gb", newCfg.Monitor.SpaceThresholdGB),
		)
	}

	// Storage (nil means disabled)
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Notify (never log the token). Nil means runtime defaults.
	defN := &NotifyConfig{Enabled: true, QueueSize: 64, RatePerSec: 1}
	oldN := oldCfg.Notify
	newN := newCfg.Notify
	if oldN == nil {
		oldN = defN
	}
	if newN == nil {
		newN = defN
	}
	if !reflect.DeepEqual(*oldN, *newN) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.enabled", newN.Enabled),
			logx.Bool("notify.push_enabled", newN.PushEnabled),
			logx.Int("notify.queue_size", newN.QueueSize),
			logx.Int("notify.rate_per_sec", newN.RatePerSec),
			logx.Bool("notify.telegram_token_set", strings.TrimSpace(newN.Telegram.Token) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
