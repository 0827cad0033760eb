// Package conv provides checked integer conversions and range arithmetic for
// on-disk fields.
//
// Descriptor counts and offsets cross the int/int64/uint32/uint64 boundary
// when they are encoded, and offset+size pairs come from untrusted files.
// Values that do not fit are reported instead of silently wrapping.
package conv
