package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, w *Watcher[Runtime]) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	// let fsnotify settle
	time.Sleep(100 * time.Millisecond)
}

func TestConfigWatcher_ReloadsRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsrc.toml")
	writeFile(t, path, "[source]\ndo_stats = false\n")

	received := make(chan Runtime, 1)
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(rt Runtime) { received <- rt })
	startWatcher(t, w)

	writeFile(t, path, "[source]\ndo_stats = true\n\n[logging]\nlevel = \"debug\"\n")

	select {
	case rt := <-received:
		if !rt.Source.DoStats {
			t.Error("DoStats = false, want true")
		}
		if rt.Logging.Level != "debug" || rt.Logging.Format != "text" {
			t.Errorf("Logging = %+v", rt.Logging)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_ReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camsrc.toml")
	writeFile(t, path, "[source]\nrollback_on_failure = false\n")

	received := make(chan Runtime, 1)
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(rt Runtime) {
		select {
		case received <- rt:
		default:
		}
	})
	startWatcher(t, w)

	tmp := filepath.Join(dir, "camsrc.toml.new")
	writeFile(t, tmp, "[source]\nrollback_on_failure = true\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case rt := <-received:
		if !rt.Source.RollbackOnFailure {
			t.Error("RollbackOnFailure = false, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsrc.toml")
	writeFile(t, path, "")

	var count1, count2 atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(Runtime) { count1.Add(1) })
	unsub := w.OnReload(func(Runtime) { count2.Add(1) })
	startWatcher(t, w)

	writeFile(t, path, "[source]\ndo_stats = true\n")
	time.Sleep(300 * time.Millisecond)
	unsub()
	writeFile(t, path, "[source]\ndo_stats = false\n")
	time.Sleep(300 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: %d calls, want 2", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: %d calls, want 1", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsrc.toml")
	writeFile(t, path, "")

	errs := make(chan error, 1)
	configs := make(chan Runtime, 1)
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(),
		WithDebounce[Runtime](50*time.Millisecond),
		WithErrorHandler[Runtime](func(err error) { errs <- err }),
	)
	w.OnReload(func(rt Runtime) { configs <- rt })
	startWatcher(t, w)

	writeFile(t, path, "invalid toml [[[")

	select {
	case <-errs:
	case <-configs:
		t.Fatal("reload handler called for invalid config")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsrc.toml")
	writeFile(t, path, "")

	var count atomic.Int32
	var last atomic.Value
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](200*time.Millisecond))
	w.OnReload(func(rt Runtime) {
		count.Add(1)
		last.Store(rt.Logging.Level)
	})
	startWatcher(t, w)

	levels := []string{"debug", "warn", "error", "info", "debug"}
	for _, level := range levels {
		writeFile(t, path, fmt.Sprintf("[logging]\nlevel = %q\n", level))
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("got %d reloads, want 1", got)
	}
	if got, _ := last.Load().(string); got != "debug" {
		t.Errorf("last level = %q, want debug", got)
	}
}

func TestConfigWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camsrc.toml")
	writeFile(t, path, "")

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(Runtime) { count.Add(1) })
	startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("got %d reloads for unrelated file, want 0", got)
	}
}
