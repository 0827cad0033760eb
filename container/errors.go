package container

import "errors"

var (
	// ErrBlockCompressedUnsupported is returned by every read of a
	// block-compressed batch container.
	ErrBlockCompressedUnsupported = errors.New("container: block-compressed batches are not supported")

	// ErrHashMismatch is returned when the recomputed integrity hash differs
	// from the stored one.
	ErrHashMismatch = errors.New("container: integrity hash mismatch")

	// ErrOutOfRange is returned for reads outside the container content.
	ErrOutOfRange = errors.New("container: range out of bounds")

	// ErrInvalidContainer is returned for containers with missing or
	// inconsistent metadata, and for data that does not match it.
	ErrInvalidContainer = errors.New("container: invalid container")

	// ErrClosed is returned for reads after Close.
	ErrClosed = errors.New("container: closed")
)
