package discovery

import (
	"errors"
	"fmt"

	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/model"
)

var (
	// ErrNoLibraries is returned when a gatherer has nothing to scan.
	ErrNoLibraries = errors.New("discovery: no libraries")
	// ErrInvalidLibrary is returned for libraries without a store or with a
	// tier that cannot be discovered.
	ErrInvalidLibrary = errors.New("discovery: invalid library")
)

// CollisionError reports a key defined twice within one tier. The first
// definition stays registered.
type CollisionError struct {
	Key      string
	Tier     model.Tier
	Existing string // descriptor holding the registered definition
	Rejected string // descriptor whose definition was dropped
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("discovery: %q defined twice in tier %s: %s and %s", e.Key, e.Tier, e.Existing, e.Rejected)
}

func (e *CollisionError) Unwrap() error { return catalog.ErrDuplicateKey }
