package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// resetLogging clears package state and routes output into a buffer.
func resetLogging(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer

	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	prevOutput, prevJournal := output, journalAvailable
	output = &buf
	journalAvailable = func() bool { return false }
	mutex.Unlock()

	t.Cleanup(func() {
		mutex.Lock()
		output, journalAvailable = prevOutput, prevJournal
		mutex.Unlock()
	})
	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"session": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"session", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestModuleLoggerOutput(t *testing.T) {
	buf := resetLogging(t)
	Initialize(Config{Level: "debug", Format: "text"})

	GetLogger("session").With("stream_key", "k1").Debug("debug message", "pid", 42)

	out := buf.String()
	for _, want := range []string{"debug message", "module=session", "stream_key=k1", "pid=42", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogging(t)
	Initialize(Config{Level: "info", Format: "json"})

	GetLogger("api").Info("request", "status", 200)

	out := buf.String()
	if !strings.Contains(out, `"module":"api"`) || !strings.Contains(out, `"status":200`) {
		t.Errorf("unexpected json output: %s", out)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	buf := resetLogging(t)

	before := GetLogger("ffmpeg")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "json",
		Modules: map[string]string{"ffmpeg": "debug"},
	})

	if GetLogger("ffmpeg") != before {
		t.Error("logger should be cached across Initialize")
	}
	if !before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the configured module level")
	}

	before.Debug("after init")
	if !strings.Contains(buf.String(), `"msg":"after init"`) {
		t.Errorf("cached logger did not switch to json: %s", buf.String())
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("notify")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before SetModuleLevel")
	}

	if err := SetModuleLevel("notify", "debug"); err != nil {
		t.Fatalf("SetModuleLevel() error = %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after SetModuleLevel")
	}

	if err := SetModuleLevel("notify", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestWithGroup(t *testing.T) {
	buf := resetLogging(t)
	Initialize(Config{Level: "info", Format: "text"})

	GetLogger("api").WithGroup("req").Info("handled", "path", "/start-stream")

	if !strings.Contains(buf.String(), "req.path=/start-stream") {
		t.Errorf("group not applied: %s", buf.String())
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
