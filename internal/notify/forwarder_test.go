package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/loopcast/internal/events"
)

type recordingSink struct {
	mu     sync.Mutex
	sent   []Notification
	err    error
	closed bool
	got    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan struct{}, 16)}
}

func (s *recordingSink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
	s.got <- struct{}{}
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestFromEvent(t *testing.T) {
	tests := []struct {
		name     string
		ev       any
		wantOK   bool
		wantType string
		wantKey  string
	}{
		{
			name:     "state change",
			ev:       events.SessionStateChangedEvent{SessionID: "s1", StreamKey: "k1", OldState: "running", NewState: "stopping"},
			wantOK:   true,
			wantType: "session-state-changed",
			wantKey:  "k1",
		},
		{
			name:     "crash",
			ev:       events.SessionCrashedEvent{SessionID: "s2", StreamKey: "k2", ExitCode: 1},
			wantOK:   true,
			wantType: "session-crashed",
			wantKey:  "k2",
		},
		{
			name:   "config reload",
			ev:     events.EncodingDefaultsReloadedEvent{Path: "config.toml"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, err := FromEvent(tt.ev)
			if err != nil {
				t.Fatalf("FromEvent() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("FromEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if n.Type != tt.wantType || n.StreamKey != tt.wantKey {
				t.Errorf("notification = %+v", n)
			}
			var decoded map[string]any
			if err := json.Unmarshal(n.Payload, &decoded); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if decoded["stream_key"] != tt.wantKey {
				t.Errorf("payload stream_key = %v", decoded["stream_key"])
			}
		})
	}
}

func TestForwarderDeliversToAllSinks(t *testing.T) {
	bus := events.New()
	ok := newRecordingSink()
	failing := newRecordingSink()
	failing.err = errors.New("connection refused")

	f := NewForwarder(bus, nil, ok, failing)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	// Retry until the subscription is in place.
	deadline := time.After(2 * time.Second)
	for delivered := false; !delivered; {
		bus.Publish(events.SessionCrashedEvent{SessionID: "s1", StreamKey: "k1", ExitCode: 1})
		select {
		case <-ok.got:
			delivered = true
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("event was not forwarded")
		}
	}

	select {
	case <-failing.got:
	case <-time.After(2 * time.Second):
		t.Fatal("failing sink was not called")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ok.mu.Lock()
	defer ok.mu.Unlock()
	if ok.sent[0].Type != "session-crashed" || ok.sent[0].StreamKey != "k1" {
		t.Errorf("sent = %+v", ok.sent[0])
	}
	if !ok.closed {
		t.Error("sink was not closed on shutdown")
	}
}

func TestNewRedisSinkRequiresAddr(t *testing.T) {
	if _, err := NewRedisSink(RedisConfig{Addr: " , "}); err == nil {
		t.Fatal("expected error without address")
	}
}

func TestRedisSinkUnreachable(t *testing.T) {
	sink, err := NewRedisSink(RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRedisSink() error = %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sink.Ping(ctx); err == nil {
		t.Error("expected ping to an unreachable redis to fail")
	}

	n, _, _ := FromEvent(events.SessionCrashedEvent{StreamKey: "k1"})
	if err := sink.Send(ctx, n); err == nil {
		t.Fatal("expected error sending to an unreachable redis")
	}
}
