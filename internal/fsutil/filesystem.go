// Package fsutil implements idempotent recursive deletion and existence
// probing on top of the primitive operations of an fsops.FS.
//
// Every deletion or existence operation treats an absent path as success.
// Directory removal first tries rmdir and only lists and clears the
// directory when the filesystem reports it is not empty, then retries.
package fsutil

import (
	"context"

	"golang.org/x/sync/semaphore"

	"dirsweep/internal/fsops"
)

// FileSystem performs tree-level operations over an fsops.FS
type FileSystem struct {
	fs  fsops.FS
	sem *semaphore.Weighted
}

// Option configures a FileSystem
type Option func(*FileSystem)

// WithMaxInFlight bounds the number of primitive calls running at once.
// n <= 0 leaves fan-out unbounded.
func WithMaxInFlight(n int) Option {
	return func(f *FileSystem) {
		if n > 0 {
			f.sem = semaphore.NewWeighted(int64(n))
		} else {
			f.sem = nil
		}
	}
}

// New creates a FileSystem over fsys
func New(fsys fsops.FS, opts ...Option) *FileSystem {
	f := &FileSystem{fs: fsys}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// acquire takes one in-flight slot. The slot covers a single primitive call,
// never a subtree, so recursion cannot starve itself of slots.
func (f *FileSystem) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.sem == nil {
		return func() {}, nil
	}
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { f.sem.Release(1) }, nil
}

func (f *FileSystem) stat(ctx context.Context, name string) (fsops.Status, error) {
	release, err := f.acquire(ctx)
	if err != nil {
		return fsops.Status{}, err
	}
	defer release()
	return f.fs.Stat(ctx, name)
}

func (f *FileSystem) lstat(ctx context.Context, name string) (fsops.Status, error) {
	release, err := f.acquire(ctx)
	if err != nil {
		return fsops.Status{}, err
	}
	defer release()
	return f.fs.Lstat(ctx, name)
}

func (f *FileSystem) readDir(ctx context.Context, name string) ([]string, error) {
	release, err := f.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return f.fs.ReadDir(ctx, name)
}

func (f *FileSystem) unlink(ctx context.Context, name string) error {
	release, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return f.fs.Unlink(ctx, name)
}

func (f *FileSystem) rmdir(ctx context.Context, name string) error {
	release, err := f.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return f.fs.Rmdir(ctx, name)
}
