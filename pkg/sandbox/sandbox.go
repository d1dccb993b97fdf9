// Package sandbox manages the ephemeral on-disk local repositories used by
// resolution sessions.
//
// Every session gets its own freshly created directory so that concurrent or
// repeated resolutions never observe each other's partially written cache
// entries. The [Store] creates those directories under a root (the process
// temp directory by default) and removes them recursively when the session is
// disposed.
//
// # Usage
//
//	store := sandbox.NewStore("")
//	dir, err := store.Create(ctx)
//	if err != nil {
//	    return err // STORAGE_ERROR
//	}
//	defer store.Destroy(ctx, dir)
//
// Directories left behind by crashed processes can be reclaimed with
// [Store.Sweep].
package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/extrepo/pkg/errors"
)

// Prefix is the name prefix of every sandbox directory.
const Prefix = "extrepo-"

// MkdirTempFunc creates a new uniquely named directory, with the semantics of
// [os.MkdirTemp].
type MkdirTempFunc func(dir, pattern string) (string, error)

// Store creates and destroys sandbox directories under a single root.
//
// A Store holds no per-session state and is safe for concurrent use.
type Store struct {
	root      string
	mkdirTemp MkdirTempFunc
}

// Option configures a Store.
type Option func(*Store)

// WithMkdirTemp replaces the directory creation function.
// Tests use it to simulate a filesystem that refuses creation.
func WithMkdirTemp(fn MkdirTempFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.mkdirTemp = fn
		}
	}
}

// NewStore creates a Store rooted at root.
// If root is empty, the process temp directory ([os.TempDir]) is used.
func NewStore(root string, opts ...Option) *Store {
	if root == "" {
		root = os.TempDir()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	s := &Store{root: filepath.Clean(root), mkdirTemp: os.MkdirTemp}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the absolute directory under which sandboxes are created.
func (s *Store) Root() string { return s.root }

// Create makes a new, uniquely named, empty sandbox directory and returns its
// absolute path. The directory is readable and writable only by the current
// user. Filesystem refusals are reported as STORAGE_ERROR.
func (s *Store) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Storage(err, "create sandbox in %s", s.root)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", errors.Storage(err, "create sandbox root %s", s.root)
	}
	dir, err := s.mkdirTemp(s.root, Prefix+"*")
	if err != nil {
		return "", errors.Storage(err, "create sandbox in %s", s.root)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", errors.Storage(err, "resolve sandbox path %s", dir)
	}
	return abs, nil
}

// Destroy recursively removes the sandbox at path.
//
// A path that does not exist is not an error. Paths that are not sandboxes
// owned by this store are refused, so a corrupted session can never delete an
// arbitrary directory. Removal failures are returned as STORAGE_ERROR; callers
// treat them as non-fatal.
func (s *Store) Destroy(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if !s.Owns(path) {
		return errors.New(errors.ErrCodeStorage, "refusing to remove %s: not a sandbox under %s", path, s.root)
	}
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Storage(err, "remove sandbox %s", path)
	}
	return nil
}

// Exists reports whether the sandbox directory at path is present on disk.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Owns reports whether path names a sandbox directly under the store root.
func (s *Store) Owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == s.root && strings.HasPrefix(filepath.Base(abs), Prefix)
}

// Sweep removes sandbox directories under the root whose modification time
// is older than olderThan, except those for which keep returns true. keep may
// be nil. It returns the number of directories removed.
//
// Sweep is meant for reclaiming sandboxes orphaned by processes that exited
// without disposing their sessions; callers pass the paths of known live
// sessions through keep. Individual removal failures are skipped.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration, keep func(path string) bool) (int, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Storage(err, "read sandbox root %s", s.root)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if keep != nil && keep(path) {
			continue
		}
		if err := os.RemoveAll(path); err == nil {
			removed++
		}
	}
	return removed, nil
}
