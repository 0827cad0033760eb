package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/respack/model"
)

// Validate checks the descriptor for completeness and consistency.
// All problems are reported, each wrapping ErrIncomplete.
func (d *Descriptor) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrIncomplete}, args...)...))
	}

	if strings.TrimSpace(d.DataPath) == "" {
		fail("missing data path")
	}
	if d.Kind == model.KindNone {
		fail("missing container kind")
	}
	if d.DataSize <= 0 {
		fail("data size %d", d.DataSize)
	}
	if len(d.Resources) == 0 {
		fail("no resources")
	}
	if d.ResourceCount != len(d.Resources) {
		fail("resource count %d, have %d entries", d.ResourceCount, len(d.Resources))
	}

	limit := d.UncompressedSize
	if d.Kind == model.KindSingle {
		limit = d.DataSize
		if len(d.Resources) > 1 {
			fail("single container holds %d resources", len(d.Resources))
		}
	}

	seen := make(map[string]struct{}, len(d.Resources))
	for i, e := range d.Resources {
		if strings.TrimSpace(e.Key) == "" {
			fail("entry %d: blank key", i)
			continue
		}
		if _, dup := seen[e.Key]; dup {
			fail("entry %d: duplicate key %q", i, e.Key)
		}
		seen[e.Key] = struct{}{}

		if !e.Within(limit) {
			fail("entry %q: range [%d,+%d) outside container of %d bytes", e.Key, e.Offset, e.Size, limit)
		}
		if d.Kind == model.KindSingle && (e.Offset != 0 || e.Size != d.DataSize) {
			fail("entry %q: single resource must span the whole file", e.Key)
		}
	}

	return errors.Join(errs...)
}

// SizeFunc reports the raw size of the descriptor's data file.
type SizeFunc func() (int64, error)

// Repair fixes what can be inferred and drops entries that cannot be used.
// It returns a note per change. The descriptor is valid when err is nil.
//
// Rules:
//   - missing kind is inferred from the data file extension
//   - missing data size is taken from sizeOf
//   - entries with a blank key are dropped
//   - a single entry without a size spans the whole file
//   - missing uncompressed size of a batch is the largest entry end
//   - entries outside the container and duplicate keys are dropped
//   - the resource count is recomputed
func (d *Descriptor) Repair(sizeOf SizeFunc) (notes []string, err error) {
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(d.DataPath) == "" {
		return notes, fmt.Errorf("%w: missing data path", ErrIncomplete)
	}

	if d.Kind == model.KindNone {
		d.Kind = model.KindFromPath(d.DataPath)
		if d.Kind == model.KindNone {
			return notes, fmt.Errorf("%w: cannot infer kind of %q", ErrIncomplete, d.DataPath)
		}
		note("inferred kind %s", d.Kind)
	}

	if d.DataSize <= 0 {
		if sizeOf == nil {
			return notes, fmt.Errorf("%w: missing data size", ErrIncomplete)
		}
		size, serr := sizeOf()
		if serr != nil {
			return notes, fmt.Errorf("%w: stat data file: %w", ErrIncomplete, serr)
		}
		if size <= 0 {
			return notes, fmt.Errorf("%w: empty data file", ErrIncomplete)
		}
		d.DataSize = size
		note("data size %d from store", size)
	}

	kept := d.Resources[:0]
	for _, e := range d.Resources {
		if strings.TrimSpace(e.Key) == "" {
			note("dropped entry with blank key")
			continue
		}
		kept = append(kept, e)
	}
	d.Resources = kept

	switch d.Kind {
	case model.KindSingle:
		if len(d.Resources) == 1 {
			e := &d.Resources[0]
			if e.Size <= 0 {
				e.Offset, e.Size = 0, d.DataSize
				note("entry %q spans whole file", e.Key)
			}
		}
		if d.UncompressedSize != d.DataSize {
			d.UncompressedSize = d.DataSize
		}
	default:
		if d.UncompressedSize <= 0 {
			var end int64
			for _, e := range d.Resources {
				if e.Size <= 0 {
					continue
				}
				if ee, ok := e.End(); ok {
					end = max(end, ee)
				}
			}
			d.UncompressedSize = end
			note("uncompressed size %d from entries", end)
		}
	}

	limit := d.UncompressedSize
	seen := make(map[string]struct{}, len(d.Resources))
	kept = d.Resources[:0]
	for _, e := range d.Resources {
		if !e.Within(limit) {
			note("dropped entry %q: range outside container", e.Key)
			continue
		}
		if _, dup := seen[e.Key]; dup {
			note("dropped duplicate entry %q", e.Key)
			continue
		}
		seen[e.Key] = struct{}{}
		kept = append(kept, e)
	}
	d.Resources = kept

	if d.ResourceCount != len(d.Resources) {
		note("resource count %d -> %d", d.ResourceCount, len(d.Resources))
		d.ResourceCount = len(d.Resources)
	}

	return notes, d.Validate()
}
