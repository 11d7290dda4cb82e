package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores one JSON document per key in a private directory.
// Writes use temp file + rename for crash safety.
type FileBackend struct {
	dir string
}

// Compile-time check to ensure FileBackend implements Backend
var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a FileBackend rooted at dir. No I/O is performed until Init.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}

	return &FileBackend{
		dir: dir,
	}, nil
}

// Dir returns the storage directory.
func (f *FileBackend) Dir() string {
	return f.dir
}

// Init creates the storage directory with 0700 permissions if it doesn't exist.
func (f *FileBackend) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}

	info, err := os.Stat(f.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.dir)
	}

	return nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Read returns the record stored under key. Returns ErrNotFound if the file doesn't
// exist, and an error if it is empty, malformed or has insecure permissions.
func (f *FileBackend) Read(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	path := f.path(key)

	// Check file permissions before reading
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if info.Mode().Perm() != 0600 {
		return Record{}, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if record.RefreshToken == "" {
		return Record{}, fmt.Errorf("empty refresh token in %s", path)
	}

	return record, nil
}

// Write atomically replaces the record using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileBackend) Write(ctx context.Context, key string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	// Create secure temp file in same directory for atomic rename
	tempFile, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// CreateTemp already uses 0600, set it explicitly before the file becomes visible
	if err := os.Chmod(tempName, 0600); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.path(key))
}

// Delete removes the record file. A missing file is not an error.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
