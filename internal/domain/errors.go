package domain

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks a record store that cannot be reached. It aborts the current cycle.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrNotFound is returned by record lookups.
var ErrNotFound = errors.New("record not found")

// StorageError wraps a backend failure so errors.Is(err, ErrStorageUnavailable) holds.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// FetchError is returned when a source responds with a non-success status or cannot be reached.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned when a payload does not have the expected shape.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ClassificationError is returned when the classifier backend fails or replies with an unexpected shape.
type ClassificationError struct {
	Op  string
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Op, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// NotifyError is returned when an alert could not be delivered.
type NotifyError struct {
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
