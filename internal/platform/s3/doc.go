// Package s3 provides a small client for S3-compatible object storage.
//
// It is used to keep one zero-byte object per node whose user metadata
// records whether the node may be destroyed.
package s3
