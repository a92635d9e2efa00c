package model

import (
	"errors"
	"fmt"
)

var (
	// ErrRemote marks any failure reported by, or while reaching, the remote store.
	ErrRemote = errors.New("remote failure")

	ErrNotFound = errors.New("appointment not found")

	// ErrPermissionDenied is an access-control rejection. It is a variant of
	// ErrRemote: errors.Is(ErrPermissionDenied, ErrRemote) holds.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrRemote)

	ErrUnauthenticated = fmt.Errorf("%w: not authenticated", ErrRemote)

	ErrValidation = errors.New("validation failed")
)

// Remote wraps err as a remote failure unless it already is one or is ErrNotFound.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRemote) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemote, err)
}
