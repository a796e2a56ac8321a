//go:build !unix

package fsops

import "os"

func unlink(name string) error {
	return os.Remove(name)
}

func rmdir(name string) error {
	return os.Remove(name)
}
