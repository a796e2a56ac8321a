//go:build !unix

package fsops

import (
	"errors"
	"io/fs"
)

func classifyPlatform(err error) Kind {
	if errors.Is(err, fs.ErrExist) {
		return KindNotEmpty
	}
	return KindOther
}
