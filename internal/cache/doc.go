// Package cache provides the block cache used in front of remote blob stores.
//
// Network-tier containers live in object storage where every range read is a
// round trip. blobstore.CachingStore splits reads into fixed-size blocks and
// keeps recently used blocks in an LRUBlockCache, keyed by blob path and block
// index. Cached bytes are charged against the resource controller's memory
// budget when one is configured.
package cache
