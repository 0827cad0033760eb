// Package hash provides the checksums used by respack on-disk formats.
//
// # Container Integrity (xxHash64)
//
// Every container descriptor stores a 64-bit xxHash of the container's raw
// bytes as written at export time. The hash is recomputable at any point:
//
//	h := hash.Sum64(raw)
//
// or, for large blobs, streamed:
//
//	h, err := hash.Reader64(io.NewSectionReader(blob, 0, blob.Size()))
//
// # Descriptor Checksums (CRC32C)
//
// Binary descriptors protect their payload with CRC32-Castagnoli, which Go's
// crc32 package accelerates in hardware when available.
package hash
