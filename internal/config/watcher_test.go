package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "server:\n  log_level: info\n")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, new *Config) {
		changed <- new
	}, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Fatalf("initial log level = %q", got)
	}

	// Force a different mtime on coarse-grained filesystems.
	time.Sleep(30 * time.Millisecond)
	writeConfigFile(t, path, "server:\n  log_level: debug\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Server.LogLevel != LogDebug {
			t.Errorf("reloaded log level = %q", cfg.Server.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never detected the change")
	}

	if got := w.Current().Server.LogLevel; got != LogDebug {
		t.Errorf("Current after reload = %q", got)
	}
}

func TestWatcherKeepsPreviousConfigOnBadReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "server:\n  log_level: info\n")

	w, err := NewWatcher(path, func(_, _ *Config) {
		t.Error("onChange fired for an invalid config")
	}, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)

	time.Sleep(30 * time.Millisecond)
	writeConfigFile(t, path, "server:\n  log_level: shouting\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("Current after bad reload = %q, want previous config retained", got)
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	t.Parallel()

	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
