package fsops

import (
	"context"
	"os"
)

// OSFS implements FS using the local filesystem
type OSFS struct{}

func (OSFS) Stat(_ context.Context, name string) (Status, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return Status{}, Wrap("stat", name, err)
	}
	return StatusFromFileInfo(fi), nil
}

func (OSFS) Lstat(_ context.Context, name string) (Status, error) {
	fi, err := os.Lstat(name)
	if err != nil {
		return Status{}, Wrap("lstat", name, err)
	}
	return StatusFromFileInfo(fi), nil
}

func (OSFS) ReadDir(_ context.Context, name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, Wrap("readdir", name, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, Wrap("readdir", name, err)
	}
	return names, nil
}

func (OSFS) Unlink(_ context.Context, name string) error {
	return Wrap("unlink", name, unlink(name))
}

func (OSFS) Rmdir(_ context.Context, name string) error {
	return Wrap("rmdir", name, rmdir(name))
}
