package process

import (
	"fmt"
	"syscall"
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	// Code follows the shell convention: the exit code for normal exits,
	// 128+signal for processes terminated by a signal.
	Code int `json:"code"`

	// Signal is the terminating signal name, empty for normal exits.
	Signal string `json:"signal,omitempty"`

	// Err is set when the process could not be waited on cleanly.
	Err error `json:"-"`
}

// Success reports whether the process exited with code 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Err == nil
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return fmt.Sprintf("exit %d (%s)", s.Code, s.Signal)
	}
	return fmt.Sprintf("exit %d", s.Code)
}

func signaledStatus(sig syscall.Signal) ExitStatus {
	return ExitStatus{Code: 128 + int(sig), Signal: sig.String()}
}
