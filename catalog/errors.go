package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key is not registered.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateKey is returned when registering a key that already exists.
	ErrDuplicateKey = errors.New("catalog: duplicate key")
	// ErrInvalidHandle is returned for nil, blank or foreign handles and
	// malformed registrations.
	ErrInvalidHandle = errors.New("catalog: invalid handle")
	// ErrInvalidContainer is returned when registering a nil or empty container.
	ErrInvalidContainer = errors.New("catalog: invalid container")
	// ErrNoImporter is returned when no importer is registered for a type.
	ErrNoImporter = errors.New("catalog: no importer for type")
	// ErrLoadTimeout is returned when an in-flight load outlived the bounded wait.
	ErrLoadTimeout = errors.New("catalog: timed out waiting for load")
	// ErrRemoved is returned when using a handle that was removed.
	ErrRemoved = errors.New("catalog: handle removed")
	// ErrNoContainer is returned when a handle has no container to import from.
	ErrNoContainer = errors.New("catalog: no container")
	// ErrNotLoaded is returned by GetResource when the handle is not loaded.
	ErrNotLoaded = errors.New("catalog: not loaded")
	// ErrWrongType is returned when a resource is not of the requested Go type.
	ErrWrongType = errors.New("catalog: wrong resource type")
	// ErrClosed is returned after the catalog was closed.
	ErrClosed = errors.New("catalog: closed")
)

// ImportError reports a failed import of one resource.
type ImportError struct {
	Key   string
	Type  string
	Stage string // "read", "decode" or "construct"
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("catalog: import %q (%s) failed during %s: %v", e.Key, e.Type, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
