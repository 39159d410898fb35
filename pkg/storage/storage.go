// Package storage keeps extraction artifacts (CSV and workbook exports, and
// archived source documents) on disk with JSON metadata beside them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// Buckets group stored files by purpose.
const (
	BucketExports   = "exports"
	BucketDocuments = "documents"
)

// ErrNotFound is returned for an unknown file ID.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Bucket      string    `json:"bucket"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the bucket directory
	// Statement names the source document an export was built from.
	Statement string    `json:"statement,omitempty"`
	Records   int       `json:"records,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Save stores r under bucket. Statement and Records are copied from meta
	// when it is non-nil.
	Save(ctx context.Context, bucket, filename, contentType string, r io.Reader, meta *FileInfo) (*FileInfo, error)

	// Open returns a reader and the metadata for a file.
	Open(ctx context.Context, bucket string, id uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Delete removes a file and its metadata.
	Delete(ctx context.Context, bucket string, id uuid.UUID) error

	// List returns the files in a bucket, newest first.
	List(ctx context.Context, bucket string) ([]*FileInfo, error)

	// GetInfo returns metadata for a file without opening it
	GetInfo(ctx context.Context, bucket string, id uuid.UUID) (*FileInfo, error)
}

// Config holds storage configuration
type Config struct {
	LocalPath string
}

// New creates the storage backend for cfg.
func New(cfg Config) (Storage, error) {
	return NewLocalStorage(cfg.LocalPath)
}
