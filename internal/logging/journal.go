package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// reservedFields are set by the handler itself and never taken from attrs.
var reservedFields = map[string]bool{
	"MESSAGE":           true,
	"PRIORITY":          true,
	"SYSLOG_IDENTIFIER": true,
}

// journalTee writes every record to next (when set) and copies it to the
// systemd journal. Attributes become journal fields, so session attributes
// are queryable with e.g. `journalctl STREAM_KEY=abcd-1234`.
type journalTee struct {
	next   slog.Handler
	send   func(msg string, priority journal.Priority, fields map[string]string) error
	fields map[string]string
	prefix string
}

func newJournalTee(next slog.Handler) *journalTee {
	return &journalTee{next: next, send: journal.Send, fields: map[string]string{}}
}

// Levels are filtered by the module logger before records get here.
func (h *journalTee) Enabled(context.Context, slog.Level) bool { return true }

func (h *journalTee) Handle(ctx context.Context, r slog.Record) error {
	if h.next != nil {
		if err := h.next.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}

	fields := make(map[string]string, len(h.fields)+r.NumAttrs()+1)
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addJournalField(fields, h.prefix, a)
		return true
	})
	fields["SYSLOG_IDENTIFIER"] = Identifier

	err := h.send(r.Message, journalPriority(r.Level), fields)
	if h.next != nil {
		// The record already reached the stream output.
		return nil
	}
	return err
}

func (h *journalTee) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(map[string]string, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, a := range attrs {
		addJournalField(fields, h.prefix, a)
	}
	out := &journalTee{send: h.send, fields: fields, prefix: h.prefix}
	if h.next != nil {
		out.next = h.next.WithAttrs(attrs)
	}
	return out
}

func (h *journalTee) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := &journalTee{send: h.send, fields: h.fields, prefix: h.prefix + name + "_"}
	if h.next != nil {
		out.next = h.next.WithGroup(name)
	}
	return out
}

func addJournalField(fields map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	if v.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "_"
		}
		for _, ga := range v.Group() {
			addJournalField(fields, groupPrefix, ga)
		}
		return
	}

	name := journalFieldName(prefix + a.Key)
	if name == "" {
		return
	}
	fields[name] = journalValue(v)
}

// journalFieldName maps an attribute key to a valid journal field name:
// uppercase ASCII letters, digits and underscores, not starting with an
// underscore or digit.
func journalFieldName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_")
	switch {
	case name == "":
		return ""
	case name[0] >= '0' && name[0] <= '9', reservedFields[name]:
		return "ATTR_" + name
	}
	return name
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}
