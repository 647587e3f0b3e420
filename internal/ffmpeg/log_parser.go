package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLevel extracts the log level from ffmpeg output.
// FFmpeg with -loglevel level+info outputs lines like "[info] message"
// or "[component @ 0x...] [level] message" for component-specific logs.
// Returns the slog level and the message with the level tag stripped but
// the component preserved.
func ParseLogLevel(line string) (slog.Level, string) {
	if len(line) < 3 || line[0] != '[' {
		return slog.LevelInfo, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return slog.LevelInfo, line
	}

	if level, ok := levelFromTag(line[1:end]); ok {
		return level, line[end+2:]
	}

	// [component @ 0x...] [level] message
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if level, ok := levelFromTag(rest[1:nextEnd]); ok {
				return level, component + rest[nextEnd+2:]
			}
		}
	}

	return slog.LevelInfo, line
}

// levelFromTag maps an ffmpeg level tag to a slog level.
func levelFromTag(tag string) (slog.Level, bool) {
	switch tag {
	case "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "info", "quiet":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace":
		return slog.LevelDebug, true
	}
	return slog.LevelInfo, false
}
