// Package blobstore abstracts the public-area backend behind a small
// interface so the packing algorithm can target either local disk or an
// S3-compatible bucket without changing (grounded on dittofs's
// pkg/blocks/store / pkg/content/store split between a generic interface
// and concrete backends).
package blobstore

import (
	"context"
	"io"
)

// Store is the minimal contract the packing algorithm (pkg/filestore)
// needs from a public-area backend: write a whole object, open it for
// streamed reads, and remove it (used by repack-and-rename).
type Store interface {
	// Put writes the full contents of r to key, replacing any existing
	// object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Open returns a reader for key, or an error satisfying os.IsNotExist
	// if absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Rename atomically replaces dstKey's contents with srcKey's and
	// removes srcKey (used by the repack-and-rename step, §4.1).
	Rename(ctx context.Context, srcKey, dstKey string) error

	// Remove deletes key if present; a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
