// Package storage defines the FileStore interface used to fetch voice model
// bundles and to persist user dictionaries. Callers can point koe at local
// disk or at an S3-compatible bucket without changing how models and
// dictionaries are read.
//
// Locations are written either as plain filesystem paths or as
// "s3://bucket/key" URIs; see [Resolve].
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The new content replaces the
	// old one only once the writer is closed without error.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadFile reads the whole named file from fs.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile replaces the named file in fs with data.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		if a, ok := w.(interface{ Abort() }); ok {
			a.Abort()
		}
		w.Close()
		return err
	}
	return w.Close()
}

// Resolve maps a location to a store and a path within it. Locations of the
// form "s3://bucket/key" need an S3 configuration; anything else is a local
// filesystem path and is served by a root-less [Local] store.
func Resolve(location string, s3cfg *S3Config) (FileStore, string, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return NewFS(), location, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("storage: invalid s3 location %q", location)
	}
	if s3cfg == nil {
		return nil, "", fmt.Errorf("storage: %s: s3 is not configured", location)
	}
	return NewS3(s3cfg.Client(), bucket, s3cfg.Prefix), key, nil
}
