// internal/game/errors.go
package game

import (
	"fmt"
	"strings"
)

// ValidationError is the client-facing, recoverable error kind. It
// carries itemized violations plus a list of actions the client could
// legally take instead, so it can self-correct without guessing.
type ValidationError struct {
	Violations   []string     `json:"violations"`
	Alternatives []ActionType `json:"alternativeActions,omitempty"`
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

func newValidationError(alternatives []ActionType, violations ...string) *ValidationError {
	return &ValidationError{Violations: violations, Alternatives: alternatives}
}

// ExecutionError indicates a failure after validation already passed.
// It is treated as a server defect: state is left unchanged and the
// message is surfaced verbatim, never retried.
type ExecutionError struct {
	Msg string
}

func (e *ExecutionError) Error() string { return e.Msg }

func executionErrorf(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Msg: fmt.Sprintf(format, args...)}
}
