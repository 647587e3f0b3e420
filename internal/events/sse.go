package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Used by the SSE and WebSocket feeds, which forward events from a select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAll subscribes ch to every session event type and returns a single
// unsubscribe function.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubscribers := []func(){
		SubscribeToChannel[SessionStateChangedEvent](bus, ch),
		SubscribeToChannel[SessionCrashedEvent](bus, ch),
		SubscribeToChannel[EncodingDefaultsReloadedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}

// Name returns the feed name of an event value, as used by SSE clients.
func Name(ev any) string {
	switch ev.(type) {
	case SessionStateChangedEvent:
		return "session-state-changed"
	case SessionCrashedEvent:
		return "session-crashed"
	case EncodingDefaultsReloadedEvent:
		return "encoding-defaults-reloaded"
	default:
		return "unknown"
	}
}
