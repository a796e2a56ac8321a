package fsops

import (
	"context"
	"io/fs"
	"time"
)

// FS abstracts the primitive filesystem operations the deletion core is built on.
// Every method issues exactly one underlying call and returns errors as *Error.
// Implementations: OSFS (local), SFTPFS (remote), FakeFS (tests).
type FS interface {
	// Stat returns the status of name, following symlinks.
	Stat(ctx context.Context, name string) (Status, error)
	// Lstat returns the status of name without following symlinks.
	Lstat(ctx context.Context, name string) (Status, error)
	// ReadDir returns the names of the immediate entries of name.
	ReadDir(ctx context.Context, name string) ([]string, error)
	// Unlink removes a single non-directory entry.
	Unlink(ctx context.Context, name string) error
	// Rmdir removes an empty directory.
	Rmdir(ctx context.Context, name string) error
}

// FileType is the tagged kind of a Status
type FileType int

const (
	TypeOther FileType = iota
	TypeFile
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Status is a point-in-time descriptor of a path
type Status struct {
	Name    string      `json:"name"`
	Type    FileType    `json:"type"`
	Size    int64       `json:"size"`
	Mode    fs.FileMode `json:"mode"`
	ModTime time.Time   `json:"mod_time"`
}

func (s Status) IsFile() bool {
	return s.Type == TypeFile
}

func (s Status) IsDir() bool {
	return s.Type == TypeDirectory
}

// StatusFromFileInfo converts an fs.FileInfo into a Status
func StatusFromFileInfo(fi fs.FileInfo) Status {
	return Status{
		Name:    fi.Name(),
		Type:    typeOf(fi.Mode()),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
}

func typeOf(m fs.FileMode) FileType {
	switch {
	case m.IsRegular():
		return TypeFile
	case m.IsDir():
		return TypeDirectory
	case m&fs.ModeSymlink != 0:
		return TypeSymlink
	default:
		return TypeOther
	}
}
