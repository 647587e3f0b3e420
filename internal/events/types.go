package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeSessionCrashed
	TypeEncodingDefaultsReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every session state transition.
type SessionStateChangedEvent struct {
	SessionID string `json:"session_id" example:"6f1c5d8e-8f0b-4a55-9b43-0b1f5c7c2a11" doc:"Session attempt identifier"`
	StreamKey string `json:"stream_key" example:"abcd-efgh-ijkl" doc:"Stream key"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous state"`
	NewState  string `json:"new_state" example:"running" doc:"New state"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Transcoder process id"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// SessionCrashedEvent is published when a transcoder exits without a stop
// request.
type SessionCrashedEvent struct {
	SessionID string  `json:"session_id" example:"6f1c5d8e-8f0b-4a55-9b43-0b1f5c7c2a11" doc:"Session attempt identifier"`
	StreamKey string  `json:"stream_key" example:"abcd-efgh-ijkl" doc:"Stream key"`
	ExitCode  int     `json:"exit_code" example:"1" doc:"Process exit code"`
	Signal    string  `json:"signal,omitempty" example:"killed" doc:"Terminating signal, if any"`
	Uptime    float64 `json:"uptime_seconds" example:"312.5" doc:"Seconds the session was running"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionCrashedEvent.
func (e SessionCrashedEvent) Type() uint32 { return TypeSessionCrashed }

// EncodingDefaultsReloadedEvent is published when the configuration file
// changed the encoding defaults used by new sessions.
type EncodingDefaultsReloadedEvent struct {
	Path      string `json:"path" example:"config.toml" doc:"Configuration file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncodingDefaultsReloadedEvent.
func (e EncodingDefaultsReloadedEvent) Type() uint32 { return TypeEncodingDefaultsReloaded }
