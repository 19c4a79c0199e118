// Package storage provides object storage abstractions for the artifact store.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPresignUnsupported = errors.New("presigned URLs not supported by this backend")
	ErrUploadFailed       = errors.New("upload failed")
	ErrDownloadFailed     = errors.New("download failed")
	ErrCopyFailed         = errors.New("copy failed")
	ErrDeleteFailed       = errors.New("delete failed")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Key is the object path within the store.
	Key string
	// Size is the object size in bytes.
	Size int64
}

// ObjectStorage abstracts the artifact store.
// Implementations include S3 and local filesystem for testing and development.
type ObjectStorage interface {
	// Put writes an object from the reader.
	// The reader is consumed fully; partial writes must not be visible.
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) error

	// Get opens an object for reading. The caller closes the returned reader.
	// Returns ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, objectPath string) (io.ReadCloser, error)

	// Copy duplicates an object within the store without the bytes
	// round-tripping through the caller.
	Copy(ctx context.Context, srcPath, dstPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all objects under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// PresignPut returns a time-bounded URL granting a single PUT to the
	// given path. Backends without native signing return ErrPresignUnsupported
	// and the upload broker serves the write itself.
	PresignPut(ctx context.Context, objectPath, contentType string, expiry time.Duration) (string, error)
}
