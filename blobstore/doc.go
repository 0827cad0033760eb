// Package blobstore provides the storage abstraction that libraries and
// containers are read from.
//
// A library root is a BlobStore. Discovery lists descriptors through it and
// containers open their payload blobs through it, so the same catalog can be
// fed from local disk, an in-memory store or an object store.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with optional mmap and atomic Put
//   - MemoryStore: in-memory, used for runtime content and tests
//   - CachingStore: block cache in front of a remote store
//   - minio.Store: MinIO / S3-compatible object storage
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//
// Implementations must be safe for concurrent use.
package blobstore
