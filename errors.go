package respack

import (
	"errors"
	"fmt"

	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/queue"
)

var (
	// ErrNotFound is returned when a key or container is not registered.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when stored data fails an integrity check.
	ErrCorrupt = errors.New("corrupt data")
	// ErrUnsupported is returned for content the runtime cannot read,
	// currently block-compressed batches.
	ErrUnsupported = errors.New("unsupported")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("assets closed")
	// ErrNoDiscovery is returned by rescans of Assets created without libraries.
	ErrNoDiscovery = errors.New("no libraries configured")
)

// ErrImport reports a resource whose import failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrImport struct {
	Key   string
	Type  string
	Stage string
	cause error
}

func (e *ErrImport) Error() string {
	return fmt.Sprintf("import %s (%s) failed at %s: %v", e.Key, e.Type, e.Stage, e.cause)
}

func (e *ErrImport) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, catalog.ErrClosed) || errors.Is(err, queue.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	// Integrity and format problems.
	if errors.Is(err, container.ErrBlockCompressedUnsupported) {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if errors.Is(err, container.ErrHashMismatch) ||
		errors.Is(err, descriptor.ErrChecksumMismatch) ||
		errors.Is(err, descriptor.ErrInvalidMagic) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var ie *catalog.ImportError
	if errors.As(err, &ie) {
		return &ErrImport{Key: ie.Key, Type: ie.Type, Stage: ie.Stage, cause: err}
	}

	// Not found unification.
	if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrRemoved) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
