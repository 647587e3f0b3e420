package session

// State is the lifecycle state of a session.
type State string

// Session states. Stopped is terminal.
const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Live reports whether a session in this state still owns its key.
func (s State) Live() bool {
	return s != StateStopped
}

// Stoppable reports whether Stop may act on a session in this state.
func (s State) Stoppable() bool {
	return s == StateStarting || s == StateRunning
}
