package config

import (
	"errors"
	"fmt"
)

// ErrCredentialsMissing is returned when neither the configuration nor the
// credentials file supplies both a user and a password.
var ErrCredentialsMissing = errors.New("credentials not found")

// CredentialsMissingError names the credentials file that was expected.
type CredentialsMissingError struct {
	// Path is the location where a credentials file was looked for.
	Path string
}

// Error returns a human-readable description naming the expected path.
func (e *CredentialsMissingError) Error() string {
	return fmt.Sprintf("credentials not found: expects a credentials file at %s", e.Path)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrCredentialsMissing).
func (e *CredentialsMissingError) Is(target error) bool {
	return target == ErrCredentialsMissing
}
