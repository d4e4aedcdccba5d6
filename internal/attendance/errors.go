package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable codes surfaced to API clients.
const (
	CodeValidationFailed    = "validation_failed"
	CodeActiveSessionExists = "active_session_exists"
	CodeAlreadyRestored     = "already_restored"
	CodeConflict            = "conflict"
	CodeInvalidSessionState = "invalid_session_state"
	CodeNotFound            = "not_found"
	CodeUnreadableCode      = "unreadable_code"
)

var (
	// ErrNotFound indicates the requested camper or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnreadableCode indicates the scanner could not produce a code.
	ErrUnreadableCode = errors.New("unreadable code")

	// ErrQueueStopped is returned for submissions after the scan queue shut down.
	ErrQueueStopped = errors.New("scan queue stopped")
)

// FieldProblem describes one invalid registration field.
type FieldProblem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports bad input. No state was changed.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+" "+p.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Reason: reason})
}

func (e *ValidationError) empty() bool { return len(e.Problems) == 0 }

// ConflictError reports an operation that collides with existing state,
// such as starting a session while another one is open. Code is one of the
// Code* constants; empty means CodeConflict.
type ConflictError struct {
	Code   string
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// StateError reports an operation that is not valid in the current session state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while session is %s", e.Op, e.State)
}

// ErrorCode maps an error from this package to its API code. Unknown errors
// map to the empty string.
func ErrorCode(err error) string {
	var (
		verr *ValidationError
		cerr *ConflictError
		serr *StateError
	)
	switch {
	case errors.As(err, &verr):
		return CodeValidationFailed
	case errors.As(err, &cerr):
		if cerr.Code == "" {
			return CodeConflict
		}
		return cerr.Code
	case errors.As(err, &serr):
		return CodeInvalidSessionState
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnreadableCode):
		return CodeUnreadableCode
	default:
		return ""
	}
}
