package storage

import (
	"context"
	"io"
)

// ObjectStorage is the object store surface used for failure artifacts.
type ObjectStorage interface {
	// PutObject uploads size bytes from reader. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, size int64, contentType string) error

	// GetObject opens a reader for an object. Caller must close it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// ListObjects streams every object under prefix. Errors arrive in-band.
	ListObjects(ctx context.Context, bucket, prefix string) <-chan ObjectInfo

	// EnsureBucket creates the bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
}

// ObjectStat contains object metadata.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}

// ObjectInfo is one entry of a listing.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
	Err       error
}
