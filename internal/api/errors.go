package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/loopcast/internal/session"
)

// ErrorBody is the JSON error shape of every endpoint: {"error": "..."}.
type ErrorBody struct {
	Status  int      `json:"-"`
	Message string   `json:"error" example:"Stream abcd-1234 is already running" doc:"Error message"`
	Details []string `json:"details,omitempty" doc:"Validation details"`
}

func (e *ErrorBody) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *ErrorBody) GetStatus() int {
	return e.Status
}

func init() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		body := &ErrorBody{Status: status, Message: msg}
		for _, err := range errs {
			if err != nil {
				body.Details = append(body.Details, err.Error())
			}
		}
		return body
	}
}

// mapSessionError converts session manager errors to HTTP errors.
func mapSessionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return huma.NewError(http.StatusServiceUnavailable, "Request cancelled before the stream finished stopping")
	}

	var sessionErr *session.SessionError
	if !errors.As(err, &sessionErr) {
		return huma.Error500InternalServerError("Internal server error", err)
	}

	switch sessionErr.Code {
	case session.ErrCodeValidation,
		session.ErrCodeAlreadyRunning,
		session.ErrCodeLaunch,
		session.ErrCodeNotRunning:
		return huma.Error400BadRequest(sessionErr.Error())
	default:
		// ErrCodeTermination: the session is gone but its transcoder may
		// still be alive.
		return huma.Error500InternalServerError(sessionErr.Error())
	}
}

// writeJSONError writes an ErrorBody from handlers that live outside huma.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ErrorBody{Status: status, Message: msg})
}
