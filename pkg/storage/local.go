package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
)

// Local implements FileStore on top of the local filesystem.
// All paths are resolved relative to the configured root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// OpenLocal returns a Local store for an existing directory. Unlike NewLocal
// it never creates the root, and fails with an error wrapping
// os.ErrNotExist when it is missing.
func OpenLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: abs, Err: fs.ErrNotExist}
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// resolve turns a storage path into an absolute filesystem path.
func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Read opens the named file for reading.
func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(path))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Write opens the named file for writing, creating parent directories as
// needed. If the file already exists it is truncated.
func (l *Local) Write(_ context.Context, path string) (io.WriteCloser, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List walks dir and returns every regular file below it. Symlinks are
// followed: a linked directory is walked like a real one, and a link to a
// regular file is listed like the file itself. Each directory is walked at
// most once, so link cycles terminate.
func (l *Local) List(ctx context.Context, dir string) ([]string, error) {
	base := path.Clean("/" + filepath.ToSlash(dir))[1:]
	var out []string
	if err := l.walk(ctx, l.resolve(dir), base, make(map[string]bool), &out); err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

func (l *Local) walk(ctx context.Context, dir, base string, seen map[string]bool, out *[]string) error {
	start, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if seen[start] {
		return nil
	}
	seen[start] = true

	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != start && seen[p] {
				return fs.SkipDir
			}
			seen[p] = true
			return nil
		}
		rel, err := filepath.Rel(start, p)
		if err != nil {
			return err
		}
		name := path.Join(base, filepath.ToSlash(rel))
		if d.Type().IsRegular() {
			*out = append(*out, name)
			return nil
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		fi, err := os.Stat(p)
		switch {
		case err != nil:
			// Dangling link.
			return nil
		case fi.IsDir():
			return l.walk(ctx, p, name, seen, out)
		case fi.Mode().IsRegular():
			*out = append(*out, name)
		}
		return nil
	})
}

// Compile-time interface check.
var _ FileStore = (*Local)(nil)
