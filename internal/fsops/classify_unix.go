//go:build unix

package fsops

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyPlatform(err error) Kind {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return KindOther
	}
	switch errno {
	case unix.ENOENT:
		return KindNotFound
	case unix.ENOTEMPTY, unix.EEXIST:
		return KindNotEmpty
	case unix.EACCES, unix.EPERM:
		return KindPermission
	default:
		return KindOther
	}
}
