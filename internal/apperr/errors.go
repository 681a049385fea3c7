// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrDisabled is returned when an action is not currently allowed,
	// e.g. narration before a story has loaded.
	ErrDisabled = errors.New("disabled")
)
