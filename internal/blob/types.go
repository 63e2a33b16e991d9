// Package blob abstracts where export artifacts are written: local
// filesystem for development, S3 for deployment, memory for tests.
package blob

import (
	"context"
	"io"
)

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Info describes a stored artifact.
type Info struct {
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
	// SHA256 is the hex-encoded checksum of the stored bytes.
	SHA256 string `json:"sha256"`
}

// Store is the write-side contract the export gatekeeper depends on. Keys are
// slash-separated relative paths; writing an existing key fails.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Driver() Driver
}
