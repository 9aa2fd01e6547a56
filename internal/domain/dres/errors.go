package dres

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrAuthentication is returned when the server rejects a login or cannot
	// be reached during one.
	ErrAuthentication = errors.New("authentication failed")

	// ErrPrecondition is returned when an operation is invoked in a state
	// that does not allow it. The session stays valid.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotAuthenticated is returned by session-scoped operations before a
	// successful login.
	ErrNotAuthenticated = fmt.Errorf("%w: not logged in", ErrPrecondition)

	// ErrNoEvaluation is returned when an evaluation-scoped operation has no
	// explicit evaluation id and none is selected.
	ErrNoEvaluation = fmt.Errorf("%w: no evaluation selected", ErrPrecondition)

	// ErrRemote is returned for any non-2xx response from DRES.
	ErrRemote = errors.New("remote error")
)

// AuthenticationError is returned when login fails.
type AuthenticationError struct {
	// User is the username that attempted to log in.
	User string
	// Cause is the underlying remote or transport error.
	Cause error
}

// Error returns a human-readable description of the failed login.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed for user %q: %v", e.User, e.Cause)
	}
	return fmt.Sprintf("authentication failed for user %q", e.User)
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrAuthentication).
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// RemoteError is returned when DRES answers with a non-2xx status.
// It carries the status code and the server's description verbatim.
type RemoteError struct {
	// Operation is the client operation that issued the call (e.g. "submit").
	Operation string
	// StatusCode is the HTTP status code.
	StatusCode int
	// Message is the description returned by the server, or the raw body.
	Message string
}

// Error returns a human-readable description of the remote failure.
func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dres %s: server returned %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("dres %s: server returned %d", e.Operation, e.StatusCode)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrRemote).
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
