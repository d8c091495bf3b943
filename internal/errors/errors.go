package errors

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Exit codes returned by the hlb binary.
const (
	ExitSuccess   = 0
	ExitUser      = 1
	ExitSystem    = 2
	ExitInterrupt = 130
)

// Error classes. Every error produced by hlb that belongs to one of these
// classes is marked with it, so errors.Is works across wrapping.
var (
	// ErrConfiguration covers every invalid or missing configuration value.
	ErrConfiguration = errors.New("configuration error")

	ErrTargetNotFound         = errors.New("target not found")
	ErrNoTargets              = errors.New("no targets defined")
	ErrInvalidRetentionPolicy = errors.New("invalid retention policy")

	// ErrInvalidIdentifier is returned when a name is not a snapshot identifier.
	ErrInvalidIdentifier = errors.New("invalid snapshot identifier")

	// ErrDestinationUnverified means the marker file is missing at the destination root.
	ErrDestinationUnverified = errors.New("destination unverified")

	// ErrTransfer means the mirroring transfer exited unsuccessfully.
	ErrTransfer = errors.New("transfer failed")

	// ErrNotFound means a requested snapshot or path does not exist.
	ErrNotFound = errors.New("not found")
)

// Configf returns a configuration error.
func Configf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// Retentionf returns an invalid retention policy error, which is also a
// configuration error.
func Retentionf(format string, args ...any) error {
	err := errors.Mark(errors.Newf(format, args...), ErrInvalidRetentionPolicy)
	return errors.Mark(err, ErrConfiguration)
}

// NotFoundf returns a not found error.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// ExitError wraps an error with an exit code and an optional suggestion.
type ExitError struct {
	Err        error
	Code       int
	Suggestion string
}

// Error returns the message of the wrapped error.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ToExit classifies err into an ExitError. Hints attached anywhere in the
// chain become the suggestion.
func ToExit(err error) *ExitError {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	code := ExitSystem
	switch {
	case errors.Is(err, context.Canceled):
		code = ExitInterrupt
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrDestinationUnverified),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidIdentifier):
		code = ExitUser
	}

	return &ExitError{
		Err:        err,
		Code:       code,
		Suggestion: strings.Join(errors.GetAllHints(err), "\n"),
	}
}
