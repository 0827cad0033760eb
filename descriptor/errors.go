package descriptor

import "errors"

var (
	// ErrInvalidMagic is returned when a binary descriptor has the wrong magic number.
	ErrInvalidMagic = errors.New("descriptor: invalid magic")

	// ErrUnsupportedVersion is returned for binary descriptors from a newer format.
	ErrUnsupportedVersion = errors.New("descriptor: unsupported version")

	// ErrChecksumMismatch is returned when the payload CRC32C does not match.
	ErrChecksumMismatch = errors.New("descriptor: checksum mismatch")

	// ErrIncomplete is returned when a descriptor is missing required fields
	// and could not be repaired.
	ErrIncomplete = errors.New("descriptor: incomplete")

	// ErrUnknownFormat is returned for file names that are not descriptors.
	ErrUnknownFormat = errors.New("descriptor: unknown format")
)
