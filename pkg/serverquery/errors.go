package serverquery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is wrapped by ConnectionError when sending outside the Ready state.
	ErrNotReady = errors.New("connection not ready")
	// ErrClosed is wrapped by ConnectionError for commands pending at teardown.
	ErrClosed = errors.New("connection closed")
)

// ConnectionError reports a transport failure or premature close.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "serverquery: " + e.Op
	}
	return fmt.Sprintf("serverquery: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports a rejected login or server selection.
type AuthError struct {
	Step string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("serverquery: %s rejected: %v", e.Step, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CommandError is a non-zero terminal response.
type CommandError struct {
	ID      int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("serverquery: error id=%d: %s", e.ID, e.Message)
}

// TimeoutError reports a command that got no terminal line in time.
type TimeoutError struct {
	Command string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("serverquery: %s timed out", verbOf(e.Command))
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsCommandError reports whether err is a CommandError with the given id.
func IsCommandError(err error, id int) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.ID == id
}
