package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// IntToUint32 converts a count to a 4-byte field.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// Int64ToUint64 converts an offset or size to an 8-byte field.
func Int64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrOverflow, v)
	}
	return uint64(v), nil
}

// Uint64ToInt64 converts a decoded 8-byte field back to an offset or size.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d does not fit int64", ErrOverflow, v)
	}
	return int64(v), nil
}

// RangeWithin reports whether [off, off+length) lies inside [0, limit)
// without computing off+length, which may overflow.
func RangeWithin(off, length, limit int64) bool {
	return off >= 0 && length >= 0 && off <= limit && length <= limit-off
}

// End returns off+length, or false if the sum overflows or either is negative.
func End(off, length int64) (int64, bool) {
	if off < 0 || length < 0 || length > math.MaxInt64-off {
		return 0, false
	}
	return off + length, true
}
