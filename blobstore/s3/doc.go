// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// It serves Network-tier libraries: discovery lists descriptors below the
// configured prefix and containers are read with ranged GETs.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("network/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
// Wrap the store in blobstore.NewCachingStore to avoid re-fetching hot
// container blocks.
package s3
