package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/loopcast/internal/ffmpeg"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[ffmpeg.EncodingParams]) *Watcher[ffmpeg.EncodingParams] {
	t.Helper()
	opts = append([]WatcherOption[ffmpeg.EncodingParams]{WithDebounce[ffmpeg.EncodingParams](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadEncodingDefaults, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Give fsnotify a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestWatcherReloadsEncodingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[encoding]\nbitrate = \"6000k\"\n")

	w := startWatcher(t, path)
	received := make(chan ffmpeg.EncodingParams, 4)
	w.OnReload(func(p ffmpeg.EncodingParams) { received <- p })

	writeConfig(t, path, "[encoding]\nbitrate = \"4500k\"\ng = 60\n")

	select {
	case p := <-received:
		if p.Bitrate != "4500k" || p.GOP != 60 {
			t.Errorf("got bitrate=%s g=%d, want 4500k and 60", p.Bitrate, p.GOP)
		}
		if p.AudioSampleRate != 44100 {
			t.Errorf("unset key lost its default: ar = %d", p.AudioSampleRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcherNoticesRenameOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[encoding]\npreset = \"veryfast\"\n")

	w := startWatcher(t, path)
	received := make(chan ffmpeg.EncodingParams, 4)
	w.OnReload(func(p ffmpeg.EncodingParams) { received <- p })

	tmp := filepath.Join(dir, ".config.toml.swp")
	writeConfig(t, tmp, "[encoding]\npreset = \"fast\"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-received:
		if p.Preset != "fast" {
			t.Errorf("preset = %s, want fast", p.Preset)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "")

	var loads atomic.Int32
	w := NewConfigWatcher(path, func(p string) (ffmpeg.EncodingParams, error) {
		loads.Add(1)
		return LoadEncodingDefaults(p)
	}, newTestLogger(), WithDebounce[ffmpeg.EncodingParams](20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(50 * time.Millisecond)

	writeConfig(t, filepath.Join(dir, "other.toml"), "x = 1\n")
	time.Sleep(150 * time.Millisecond)

	if got := loads.Load(); got != 0 {
		t.Errorf("loader ran %d times for an unrelated file", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	errs := make(chan error, 4)
	w := startWatcher(t, path, WithErrorHandler[ffmpeg.EncodingParams](func(err error) { errs <- err }))
	reloaded := make(chan struct{}, 4)
	w.OnReload(func(ffmpeg.EncodingParams) { reloaded <- struct{}{} })

	writeConfig(t, path, "[encoding]\nbitrate = \"lots\"\n")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
	select {
	case <-reloaded:
		t.Error("handler called with an invalid config")
	default:
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	w := NewConfigWatcher(path, LoadEncodingDefaults, newTestLogger())

	var first, second atomic.Int32
	unsub := w.OnReload(func(ffmpeg.EncodingParams) { first.Add(1) })
	w.OnReload(func(ffmpeg.EncodingParams) { second.Add(1) })

	w.Reload()
	unsub()
	w.Reload()

	if first.Load() != 1 {
		t.Errorf("unsubscribed handler calls = %d, want 1", first.Load())
	}
	if second.Load() != 2 {
		t.Errorf("remaining handler calls = %d, want 2", second.Load())
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	var loads atomic.Int32
	w := NewConfigWatcher(path, func(p string) (ffmpeg.EncodingParams, error) {
		loads.Add(1)
		return LoadEncodingDefaults(p)
	}, newTestLogger(), WithDebounce[ffmpeg.EncodingParams](200*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(50 * time.Millisecond)

	for i := range 5 {
		writeConfig(t, path, "[encoding]\ng = "+string(rune('1'+i))+"0\n")
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := loads.Load(); got != 1 {
		t.Errorf("loads = %d, want 1 after a burst of writes", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	w := NewConfigWatcher(path, LoadEncodingDefaults, newTestLogger())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestWatcherStartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "config.toml"), LoadEncodingDefaults, newTestLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error watching a missing directory")
	}
}
