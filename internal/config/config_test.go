package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Gateway.URL != "http://localhost:8420" {
		t.Errorf("Gateway.URL = %q, want http://localhost:8420", cfg.Gateway.URL)
	}
	if cfg.Polling.PollSeconds != 2 {
		t.Errorf("PollSeconds = %d, want 2", cfg.Polling.PollSeconds)
	}
	if cfg.Polling.RefreshSeconds != 30 {
		t.Errorf("RefreshSeconds = %d, want 30", cfg.Polling.RefreshSeconds)
	}
	if !cfg.Notifications.Desktop {
		t.Error("desktop notifications should be enabled by default")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", cfg.Gateway.TimeoutSeconds)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[gateway]
url = "http://gateway.local:9000/"
timeout_seconds = 10

[polling]
poll_seconds = 5

[notifications]
slack_webhook = "https://hooks.slack.com/services/T00/B00/xyz"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Gateway.URL != "http://gateway.local:9000" {
		t.Errorf("URL = %q, want trailing slash stripped", cfg.Gateway.URL)
	}
	if cfg.Gateway.Timeout() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Gateway.Timeout())
	}
	if cfg.Polling.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Polling.PollInterval())
	}
	if cfg.Polling.RefreshSeconds != 30 {
		t.Errorf("RefreshSeconds = %d, want default 30 kept", cfg.Polling.RefreshSeconds)
	}
	if cfg.Notifications.SlackWebhook == "" {
		t.Error("slack webhook not loaded")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[polling]\npoll_seconds = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var got atomic.Int32
	w, err := NewWatcher(path, func(cfg *Config) {
		got.Store(int32(cfg.Polling.PollSeconds))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SetDebounce(20 * time.Millisecond)
	w.Start(context.Background())

	if err := os.WriteFile(path, []byte("[polling]\npoll_seconds = 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got.Load() == 9 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("callback saw poll_seconds=%d, want 9", got.Load())
}

func TestWatcher_StopDropsPendingReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*Config) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(100 * time.Millisecond)
	w.Start(context.Background())

	if err := os.WriteFile(path, []byte("[polling]\npoll_seconds = 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Let the event loop arm the debounce timer, then stop before it fires.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		armed := w.timer != nil
		w.mu.Unlock()
		if armed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	time.Sleep(200 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("callback fired %d times after Stop", calls.Load())
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w, err := NewWatcher(path, func(*Config) { calls.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SetDebounce(20 * time.Millisecond)
	w.Start(context.Background())

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("callback fired %d times for an unrelated file", calls.Load())
	}
}
