// Package notify forwards session lifecycle events from the in-process bus to
// external sinks.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smazurov/loopcast/internal/events"
)

// Notification is one lifecycle event ready for delivery.
type Notification struct {
	Type      string          `json:"type"`
	StreamKey string          `json:"stream_key"`
	Payload   json.RawMessage `json:"payload"`
	SentAt    time.Time       `json:"sent_at"`
}

// Sink delivers notifications somewhere outside the process.
type Sink interface {
	Send(ctx context.Context, n Notification) error
	Close() error
}

// FromEvent converts a bus event into a Notification. Events that carry no
// stream key are reported as not ok.
func FromEvent(ev any) (Notification, bool, error) {
	var key string
	switch e := ev.(type) {
	case events.SessionStateChangedEvent:
		key = e.StreamKey
	case events.SessionCrashedEvent:
		key = e.StreamKey
	default:
		return Notification{}, false, nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return Notification{}, false, fmt.Errorf("marshal %s: %w", events.Name(ev), err)
	}
	return Notification{
		Type:      events.Name(ev),
		StreamKey: key,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}, true, nil
}
