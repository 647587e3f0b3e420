package session

import (
	"errors"
	"fmt"
)

// SessionError represents a session manager failure.
type SessionError struct {
	Code    string
	Key     string
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	// ErrCodeValidation marks bad input. Nothing was changed.
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeAlreadyRunning marks a start for a key that already holds a session.
	ErrCodeAlreadyRunning = "ALREADY_RUNNING"
	// ErrCodeLaunch marks a transcoder that could not be spawned. The session
	// was cleaned up.
	ErrCodeLaunch = "LAUNCH_ERROR"
	// ErrCodeNotRunning marks a stop for a key with no live session.
	ErrCodeNotRunning = "NOT_RUNNING"
	// ErrCodeUnexpectedExit marks a transcoder that died on its own. It is only
	// ever reported through logs, events and metrics.
	ErrCodeUnexpectedExit = "UNEXPECTED_EXIT"
	// ErrCodeTermination marks a transcoder that survived SIGKILL. The session
	// is still removed.
	ErrCodeTermination = "TERMINATION_ERROR"
)

func newError(code, key, message string, cause error) *SessionError {
	return &SessionError{Code: code, Key: key, Message: message, Cause: cause}
}

func validationError(key, message string, cause error) *SessionError {
	return newError(ErrCodeValidation, key, message, cause)
}

func alreadyRunningError(key string) *SessionError {
	return newError(ErrCodeAlreadyRunning, key, fmt.Sprintf("Stream %s is already running", key), nil)
}

func launchError(key string, cause error) *SessionError {
	return newError(ErrCodeLaunch, key, fmt.Sprintf("Failed to start stream %s", key), cause)
}

func notRunningError(key string) *SessionError {
	return newError(ErrCodeNotRunning, key, fmt.Sprintf("Stream %s is not running", key), nil)
}

func terminationError(key string, cause error) *SessionError {
	return newError(ErrCodeTermination, key, fmt.Sprintf("Failed to terminate stream %s", key), cause)
}

// ErrorCode returns the code of a SessionError anywhere in err's chain, or ""
// when err is not one.
func ErrorCode(err error) string {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given session error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
