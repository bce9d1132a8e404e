package assessment

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the session manager. Repository failures are not
// wrapped into these; they propagate verbatim so callers can retry.
var (
	ErrNotFound     = errors.New("not found")
	ErrInputInvalid = errors.New("input invalid")
	ErrStateInvalid = errors.New("state invalid")
	ErrExpired      = errors.New("assessment expired")
)

func errInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputInvalid, fmt.Sprintf(format, args...))
}

func errState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateInvalid, fmt.Sprintf(format, args...))
}

func errNotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
