package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type journalEntry struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func newRecordingTee(next slog.Handler, sendErr error) (*journalTee, *[]journalEntry) {
	var entries []journalEntry
	h := newJournalTee(next)
	h.send = func(msg string, priority journal.Priority, fields map[string]string) error {
		entries = append(entries, journalEntry{msg, priority, fields})
		return sendErr
	}
	return h, &entries
}

func TestJournalSessionFields(t *testing.T) {
	var buf bytes.Buffer
	tee, entries := newRecordingTee(slog.NewTextHandler(&buf, nil), nil)

	logger := slog.New(tee).With("module", "session", "stream_key", "abcd-1234", "session_id", "5f0c")
	logger.WithGroup("ffmpeg").Warn("Transcoder ignored SIGINT, killing", "fps", 29.97, "message", "x")

	if len(*entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(*entries))
	}
	e := (*entries)[0]
	if e.message != "Transcoder ignored SIGINT, killing" || e.priority != journal.PriWarning {
		t.Errorf("entry = %q priority %d", e.message, e.priority)
	}

	want := map[string]string{
		"MODULE":            "session",
		"STREAM_KEY":        "abcd-1234",
		"SESSION_ID":        "5f0c",
		"FFMPEG_FPS":        "29.97",
		"FFMPEG_MESSAGE":    "x",
		"SYSLOG_IDENTIFIER": "loopcast",
	}
	for k, v := range want {
		if e.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, e.fields[k], v)
		}
	}

	if !strings.Contains(buf.String(), "stream_key=abcd-1234") || !strings.Contains(buf.String(), "ffmpeg.fps=29.97") {
		t.Errorf("stream output = %s", buf.String())
	}
}

func TestJournalWithoutStreamOutput(t *testing.T) {
	tee, entries := newRecordingTee(nil, errors.New("no journal socket"))

	err := slog.New(tee).Handler().Handle(t.Context(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	if err == nil {
		t.Error("expected send error when the journal is the only output")
	}
	if len(*entries) != 1 || (*entries)[0].priority != journal.PriErr {
		t.Errorf("entries = %+v", *entries)
	}
}

func TestJournalSendErrorIgnoredWithStreamOutput(t *testing.T) {
	var buf bytes.Buffer
	tee, _ := newRecordingTee(slog.NewTextHandler(&buf, nil), errors.New("no journal socket"))

	slog.New(tee).Info("still printed")
	if !strings.Contains(buf.String(), "still printed") {
		t.Errorf("stream output = %q", buf.String())
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"stream_key", "STREAM_KEY"},
		{"http.method", "HTTP_METHOD"},
		{"_private", "PRIVATE"},
		{"2xx", "ATTR_2XX"},
		{"message", "ATTR_MESSAGE"},
		{"priority", "ATTR_PRIORITY"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := journalFieldName(tt.key); got != tt.want {
				t.Errorf("journalFieldName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestJournalPriority(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  journal.Priority
	}{
		{slog.LevelDebug, journal.PriDebug},
		{slog.LevelInfo, journal.PriInfo},
		{slog.LevelWarn, journal.PriWarning},
		{slog.LevelError, journal.PriErr},
		{slog.LevelError + 4, journal.PriErr},
	}
	for _, tt := range tests {
		if got := journalPriority(tt.level); got != tt.want {
			t.Errorf("journalPriority(%s) = %d, want %d", tt.level, got, tt.want)
		}
	}
}
