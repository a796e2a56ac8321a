//go:build unix

package fsops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"ErrNotExist", fs.ErrNotExist, KindNotFound},
		{"ENOENT", syscall.ENOENT, KindNotFound},
		{"path error ENOENT", &fs.PathError{Op: "rmdir", Path: "/x", Err: syscall.ENOENT}, KindNotFound},
		{"ENOTEMPTY", syscall.ENOTEMPTY, KindNotEmpty},
		{"EEXIST", syscall.EEXIST, KindNotEmpty},
		{"EACCES", syscall.EACCES, KindPermission},
		{"EPERM", syscall.EPERM, KindPermission},
		{"ErrPermission", fs.ErrPermission, KindPermission},
		{"EIO", syscall.EIO, KindOther},
		{"plain", errors.New("boom"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrapKeepsKindAndUnwraps(t *testing.T) {
	err := Wrap("rmdir", "/a", &fs.PathError{Op: "rmdir", Path: "/a", Err: syscall.ENOTEMPTY})

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNotEmpty, fe.Kind)
	assert.Equal(t, "rmdir", fe.Op)
	assert.ErrorIs(t, err, syscall.ENOTEMPTY)
	assert.True(t, IsNotEmpty(err))
	assert.False(t, IsNotFound(err))

	assert.NoError(t, Wrap("rmdir", "/a", nil))
	assert.Same(t, fe, Wrap("unlink", "/b", fe).(*Error))
}

func TestClassifySFTP(t *testing.T) {
	tests := []struct {
		name string
		op   string
		err  error
		want Kind
	}{
		{"no such file", "stat", &sftp.StatusError{Code: sftpNoSuchFile}, KindNotFound},
		{"normalised not exist", "readdir", os.ErrNotExist, KindNotFound},
		{"permission", "unlink", &sftp.StatusError{Code: sftpPermissionDenied}, KindPermission},
		{"failure on rmdir", "rmdir", &sftp.StatusError{Code: sftpFailure}, KindNotEmpty},
		{"failure elsewhere", "unlink", &sftp.StatusError{Code: sftpFailure}, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(wrapSFTP(tt.op, "/p", tt.err)))
		})
	}
}

func TestOSFSStatusTypes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	require.NoError(t, os.Symlink(file, link))

	var osfs OSFS

	st, err := osfs.Stat(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, st.Type)

	st, err = osfs.Stat(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, TypeFile, st.Type)
	assert.Equal(t, int64(5), st.Size)

	st, err = osfs.Stat(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, TypeFile, st.Type, "stat follows symlinks")

	st, err = osfs.Lstat(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, TypeSymlink, st.Type, "lstat does not follow symlinks")
}

func TestOSFSErrorKinds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))

	var osfs OSFS

	_, err := osfs.Stat(ctx, missing)
	assert.True(t, IsNotFound(err))

	_, err = osfs.ReadDir(ctx, missing)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(osfs.Unlink(ctx, missing)))
	assert.True(t, IsNotFound(osfs.Rmdir(ctx, missing)))
	assert.True(t, IsNotEmpty(osfs.Rmdir(ctx, dir)))

	names, err := osfs.ReadDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, names)
}

func TestFakeFS(t *testing.T) {
	ctx := context.Background()
	f := NewFakeFS()
	f.AddFile("/a/b/c.txt")

	assert.True(t, f.Exists("/a"))
	assert.True(t, f.Exists("/a/b"))

	names, err := f.ReadDir(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	assert.True(t, IsNotEmpty(f.Rmdir(ctx, "/a/b")))
	require.NoError(t, f.Unlink(ctx, "/a/b/c.txt"))
	require.NoError(t, f.Rmdir(ctx, "/a/b"))
	assert.True(t, IsNotFound(f.Unlink(ctx, "/a/b/c.txt")))

	f.Fail("rmdir", "/a", KindPermission)
	assert.True(t, IsPermission(f.Rmdir(ctx, "/a")))

	ran := false
	f.Before("lstat", "/a", func(fake *FakeFS) { ran = true })
	_, err = f.Lstat(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, f.CallCount("rmdir"))
}
