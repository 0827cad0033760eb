// Package minio provides a BlobStore implementation using the MinIO client.
//
// It serves Network-tier libraries hosted on MinIO or any S3-compatible
// service (Ceph, Garage, SeaweedFS) without pulling in the AWS SDK.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "assets", "network/")
package minio
