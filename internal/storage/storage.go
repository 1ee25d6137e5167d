// Package storage manages scratch space for downloaded videos and publishes
// screenshots to S3. It defines the Storage port and implementations for
// local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines scratch-file handling and remote publishing.
type Storage interface {
	// ReserveTemp returns a fresh, not yet existing path in the scratch
	// directory. The file name starts with prefix and ends with ext.
	ReserveTemp(ctx context.Context, prefix, ext string) (path string, err error)

	// CleanupTemp removes the specified scratch files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data under key and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
