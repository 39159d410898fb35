package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage keeps each bucket as a directory under basePath, with a
// JSON sidecar per file under <bucket>/.meta.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates basePath if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, errors.New("storage path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Save stores a file and returns its metadata.
func (s *LocalStorage) Save(ctx context.Context, bucket, filename, contentType string, r io.Reader, meta *FileInfo) (*FileInfo, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}

	id := uuid.New()
	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFilename(filename))
	path := filepath.Join(dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          id,
		Bucket:      bucket,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   s.now().UTC(),
	}
	if meta != nil {
		info.Statement = meta.Statement
		info.Records = meta.Records
	}

	if err := s.saveMetadata(dir, info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

// Open retrieves a file by its ID.
func (s *LocalStorage) Open(ctx context.Context, bucket string, id uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.GetInfo(ctx, bucket, id)
	if err != nil {
		return nil, nil, err
	}

	dir, _ := s.bucketDir(bucket)
	f, err := os.Open(filepath.Join(dir, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes a file by its ID.
func (s *LocalStorage) Delete(ctx context.Context, bucket string, id uuid.UUID) error {
	info, err := s.GetInfo(ctx, bucket, id)
	if err != nil {
		return err
	}

	dir, _ := s.bucketDir(bucket)
	if err := os.Remove(filepath.Join(dir, info.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath(dir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

// List returns all files in a bucket, newest first.
func (s *LocalStorage) List(ctx context.Context, bucket string) ([]*FileInfo, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(dir, metaDir))
	if os.IsNotExist(err) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.GetInfo(ctx, bucket, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// GetInfo returns metadata for a file.
func (s *LocalStorage) GetInfo(ctx context.Context, bucket string, id uuid.UUID) (*FileInfo, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(metaPath(dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) bucketDir(bucket string) (string, error) {
	if bucket == "" || bucket != sanitizeFilename(bucket) || strings.HasPrefix(bucket, ".") {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(s.basePath, bucket), nil
}

func (s *LocalStorage) saveMetadata(dir string, info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath(dir, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func metaPath(dir string, id uuid.UUID) string {
	return filepath.Join(dir, metaDir, id.String()+".json")
}

var unsafeName = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// sanitizeFilename replaces path separators and characters Windows rejects.
func sanitizeFilename(name string) string {
	return unsafeName.Replace(name)
}
