// Package storage defines the FileStore interface used to reach voice corpora
// and rendered output. It abstracts the backend so that a corpus can live on
// local disk or in an S3-compatible bucket without changing the inventory
// builder.
//
// A corpus is laid out as one directory per voice, holding a WAVE file and a
// TextGrid per recorded item:
//
//	<voice>/<item>.wav
//	<voice>/<item>.TextGrid
package storage

import (
	"context"
	"io"
	"path"
	"slices"
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

	// Write opens the named file for writing.
	// If the file already exists it is truncated.
	// Parent directories are created automatically.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of all files below dir, recursively, in sorted
	// order. An empty dir lists the whole store. A missing dir yields an
	// empty list.
	List(ctx context.Context, dir string) ([]string, error)
}

// ReadAll reads the whole named file.
func ReadAll(ctx context.Context, fs FileStore, name string) ([]byte, error) {
	r, err := fs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteAll writes data to the named file, replacing it.
func WriteAll(ctx context.Context, fs FileStore, name string, data []byte) error {
	w, err := fs.Write(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Dirs returns the distinct top-level directory names of the store, sorted.
func Dirs(ctx context.Context, fs FileStore) ([]string, error) {
	files, err := fs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, f := range files {
		if top, _, ok := strings.Cut(f, "/"); ok {
			dirs = append(dirs, top)
		}
	}
	slices.Sort(dirs)
	return slices.Compact(dirs), nil
}

// Stem strips the directory and extension from a path.
func Stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
