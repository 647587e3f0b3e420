// Package logging provides structured logging with per-module log levels.
//
// # Usage
//
// Initialize once at startup, then fetch a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ffmpeg": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("session").With("stream_key", key)
//	logger.Info("Stream started", "pid", pid)
//
// Loggers may be obtained before Initialize; they pick up the configured
// format and levels once it runs. SetModuleLevel adjusts a module at runtime.
//
// # Output
//
// Records go to stdout (text or json) when it is a terminal, pipe, socket or
// file, and to the systemd journal when journald is running
// ([github.com/coreos/go-systemd/v22/journal.Enabled]).
//
//	journalctl -t loopcast -f
//	journalctl -t loopcast MODULE=session STREAM_KEY=abcd-efgh
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	ffmpeg = "warn"
//	api = "debug"
package logging
