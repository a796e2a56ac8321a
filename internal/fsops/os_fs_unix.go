//go:build unix

package fsops

import "golang.org/x/sys/unix"

// Plain unlink(2) and rmdir(2), without os.Remove's fallback from one to the other.

func unlink(name string) error {
	for {
		err := unix.Unlink(name)
		if err != unix.EINTR {
			return err
		}
	}
}

func rmdir(name string) error {
	for {
		err := unix.Rmdir(name)
		if err != unix.EINTR {
			return err
		}
	}
}
