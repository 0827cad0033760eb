// Package container implements the physical data blobs resources live in.
//
// A Container is one data file in a blobstore plus the metadata from its
// descriptor. Three layouts exist:
//
//   - Single: one resource, its byte range is the whole file. Reads are
//     passed through to the store as range reads.
//   - BatchCompressed: many resources in one compressed stream (zstd or
//     lz4). The first access decompresses the whole stream into a cache
//     shared by all readers; later reads are slices of that buffer.
//   - BatchBlockCompressed: declared for block-granular access and never
//     implemented. Every read fails with ErrBlockCompressedUnsupported.
//
// The 64-bit integrity hash covers the raw file bytes and is computed by
// the Packer at export time. Verify recomputes it.
package container
