package ffmpeg

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel slog.Level
		wantMsg   string
	}{
		{"[info] Stream mapping:", slog.LevelInfo, "Stream mapping:"},
		{"[error] Connection refused", slog.LevelError, "Connection refused"},
		{"[fatal] out of memory", slog.LevelError, "out of memory"},
		{"[warning] Past duration too large", slog.LevelWarn, "Past duration too large"},
		{"[debug] probing", slog.LevelDebug, "probing"},
		{"[flv @ 0x55d0c8] [error] Failed to update header", slog.LevelError, "[flv @ 0x55d0c8] Failed to update header"},
		{"[libx264 @ 0x1] using cpu capabilities", slog.LevelInfo, "[libx264 @ 0x1] using cpu capabilities"},
		{"frame= 120 fps= 30", slog.LevelInfo, "frame= 120 fps= 30"},
		{"[]", slog.LevelInfo, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel {
				t.Errorf("level = %v, want %v", level, tt.wantLevel)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
