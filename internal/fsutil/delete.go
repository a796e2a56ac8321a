package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"dirsweep/internal/fsops"
)

// DeleteFile removes a single file.
// Returns false if it was already absent.
func (f *FileSystem) DeleteFile(ctx context.Context, path string) (bool, error) {
	if err := f.unlink(ctx, path); err != nil {
		if fsops.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteDir removes the directory at path and returns the number of files
// removed. The directory is first removed as if empty; when the filesystem
// reports it is not empty and recursive is set, its contents are cleaned and
// the removal retried. A missing directory yields 0.
func (f *FileSystem) DeleteDir(ctx context.Context, path string, recursive bool) (int, error) {
	err := f.rmdir(ctx, path)
	if err == nil {
		return 0, nil
	}

	switch fsops.KindOf(err) {
	case fsops.KindNotFound:
		return 0, nil
	case fsops.KindNotEmpty:
		if !recursive {
			return 0, err
		}
		count, err := f.CleanDir(ctx, path)
		if err != nil {
			return count, err
		}
		if _, err := f.DeleteDir(ctx, path, false); err != nil {
			return count, err
		}
		return count, nil
	default:
		return 0, err
	}
}

// CleanDir removes everything inside the directory at path, keeping the
// directory itself, and returns the number of files removed.
//
// Entries are deleted concurrently in no particular order. The first failure
// fails the call once every started entry has settled; entries already
// deleted stay deleted and are included in the returned count.
func (f *FileSystem) CleanDir(ctx context.Context, path string) (int, error) {
	names, err := f.readDir(ctx, path)
	if err != nil {
		if fsops.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		child := filepath.Join(path, name)
		g.Go(func() error {
			n, err := f.deleteEntry(gctx, child)
			count.Add(int64(n))
			return err
		})
	}
	err = g.Wait()
	return int(count.Load()), err
}

func (f *FileSystem) deleteEntry(ctx context.Context, path string) (int, error) {
	st, err := f.lstat(ctx, path)
	if err != nil {
		// Vanished between the listing and the probe
		if fsops.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	if st.IsDir() {
		return f.DeleteDir(ctx, path, true)
	}

	removed, err := f.DeleteFile(ctx, path)
	if err != nil || !removed {
		return 0, err
	}
	return 1, nil
}

// DeletePathIfEmpty removes the parent directory of path if it is empty and
// keeps walking upward until an ancestor cannot be removed or the root is
// reached. Returns true if at least one ancestor was removed.
func (f *FileSystem) DeletePathIfEmpty(ctx context.Context, path string) bool {
	return f.pruneParents(ctx, path, func(string) bool { return true })
}

// DeletePathIfEmptyWithin is DeletePathIfEmpty bounded by root: root itself
// and anything outside it are never removed.
func (f *FileSystem) DeletePathIfEmptyWithin(ctx context.Context, path, root string) bool {
	root = filepath.Clean(root)
	return f.pruneParents(ctx, path, func(dir string) bool {
		return isStrictlyWithin(dir, root)
	})
}

func (f *FileSystem) pruneParents(ctx context.Context, path string, allowed func(string) bool) bool {
	parent := filepath.Dir(path)
	if parent == path || !allowed(parent) {
		return false
	}
	if err := f.rmdir(ctx, parent); err != nil {
		return false
	}
	f.pruneParents(ctx, parent, allowed)
	return true
}

func isStrictlyWithin(path, root string) bool {
	path = filepath.Clean(path)
	if path == root {
		return false
	}
	if root == string(os.PathSeparator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}
