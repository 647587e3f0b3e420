package session

import (
	"sync"
	"time"

	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/process"
)

// Session is one streaming attempt for a key. The identity fields are fixed at
// construction; the rest is guarded by mu.
type Session struct {
	id          string
	key         string
	source      string
	destination string
	params      ffmpeg.EncodingParams
	startedAt   time.Time

	mu        sync.Mutex
	state     State
	handle    Handle
	stoppedAt time.Time
	exit      *process.ExitStatus

	// stopCh is closed once, by the first accepted stop request.
	stopCh chan struct{}
	// done is closed after the session reached Stopped and left the registry.
	done chan struct{}
	// termErr is written before done is closed.
	termErr error
}

func newSession(id, key, source, destination string, params ffmpeg.EncodingParams, now time.Time) *Session {
	return &Session{
		id:          id,
		key:         key,
		source:      source,
		destination: destination,
		params:      params,
		startedAt:   now,
		state:       StateStarting,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has been cleaned up.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// markRunning attaches the launched handle. The state only moves to Running
// when no stop was requested during launch.
func (s *Session) markRunning(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handle = h
	if s.state != StateStarting {
		return false
	}
	s.state = StateRunning
	return true
}

// requestStop moves a Starting or Running session to Stopping and wakes the
// monitor. Returns the previous state and whether the request was accepted.
func (s *Session) requestStop() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if !prev.Stoppable() {
		return prev, false
	}
	s.state = StateStopping
	close(s.stopCh)
	return prev, true
}

// finish moves the session to Stopped and returns the previous state.
func (s *Session) finish(exit *process.ExitStatus, now time.Time) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	s.state = StateStopped
	s.exit = exit
	s.stoppedAt = now
	return prev
}

// Info is a point-in-time copy of a session.
type Info struct {
	ID             string
	Key            string
	State          State
	VideoSource    string
	DestinationURL string
	Params         ffmpeg.EncodingParams
	PID            int
	StartedAt      time.Time
	StoppedAt      time.Time
	ExitStatus     *process.ExitStatus
}

// Uptime returns how long the session has been (or was) alive at now.
func (i Info) Uptime(now time.Time) time.Duration {
	if !i.StoppedAt.IsZero() {
		return i.StoppedAt.Sub(i.StartedAt)
	}
	return now.Sub(i.StartedAt)
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:             s.id,
		Key:            s.key,
		State:          s.state,
		VideoSource:    s.source,
		DestinationURL: s.destination,
		Params:         s.params,
		StartedAt:      s.startedAt,
		StoppedAt:      s.stoppedAt,
	}
	if s.handle != nil {
		info.PID = s.handle.PID()
	}
	if s.exit != nil {
		exit := *s.exit
		info.ExitStatus = &exit
	}
	return info
}
