package fsutil

import (
	"context"

	"dirsweep/internal/fsops"
)

// GetStat returns the status of path, following symlinks.
// Fails with a classified *fsops.Error, including for a missing path.
func (f *FileSystem) GetStat(ctx context.Context, path string) (fsops.Status, error) {
	return f.stat(ctx, path)
}

// GetLinkStat returns the status of path without following symlinks
func (f *FileSystem) GetLinkStat(ctx context.Context, path string) (fsops.Status, error) {
	return f.lstat(ctx, path)
}

// ExistsFile reports whether path exists and is a regular file
func (f *FileSystem) ExistsFile(ctx context.Context, path string) (bool, error) {
	st, err := f.stat(ctx, path)
	if err != nil {
		if fsops.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return st.IsFile(), nil
}

// ExistsDir reports whether path exists and is a directory
func (f *FileSystem) ExistsDir(ctx context.Context, path string) (bool, error) {
	st, err := f.stat(ctx, path)
	if err != nil {
		if fsops.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return st.IsDir(), nil
}
