package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"monitor": {"enabled": true, "base_interval": "5m", "heartbeat": "30s", "check_on_start": true},
		"storage": {"driver": "sqlite", "path": "./sw.db", "busy_timeout": "2s"}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.BaseInterval != "5m" {
		t.Fatalf("monitor = %+v", cfg.Monitor)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notify != nil {
		t.Fatalf("notify should be nil when omitted, got %+v", cfg.Notify)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
logging:
  level: info
  console: true
  file:
    enabled: true
    path: ./streamwatch.log
monitor:
  enabled: true
  base_interval: 300s
  check_on_start: false
notify:
  enabled: true
  push_enabled: true
  telegram:
    token: "t"
    chat_id: 42
  templates:
    live_start_title: "[room_name] is live"
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Notify == nil || cfg.Notify.Telegram.ChatID != 42 {
		t.Fatalf("notify = %+v", cfg.Notify)
	}
	if cfg.Notify.Templates.LiveStartTitle != "[room_name] is live" {
		t.Fatalf("templates = %+v", cfg.Notify.Templates)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"monitor": {"enabled": true, "loop_time": 300}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"monitor": {"enabled": true}}{"extra": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"30s", 30 * time.Second, false},
		{" 5m ", 5 * time.Minute, false},
		{"300", 0, true},
		{"-1s", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseDurationField("monitor.heartbeat", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDurationField(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDurationField(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Monitor: MonitorConfig{Enabled: true, BaseInterval: "300s"},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Monitor: MonitorConfig{Enabled: true, BaseInterval: "300s"},
		Storage: &StorageConfig{Driver: "file", Path: "./sw.json"},
	}

	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := []string{"logging", "storage"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}

	if c, _ := SummarizeChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("identical configs reported changes: %v", c)
	}
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"monitor": {"enabled": true}}`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get returned a different config than Load committed")
	}
}
