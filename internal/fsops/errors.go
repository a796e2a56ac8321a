package fsops

import (
	"errors"
	"io/fs"
)

// Kind classifies a filesystem failure. Recovery logic branches on Kind only,
// never on raw platform codes.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindNotEmpty
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotEmpty:
		return "not_empty"
	case KindPermission:
		return "permission_denied"
	default:
		return "other"
	}
}

// Error is the only error type returned by FS implementations
type Error struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err and wraps it as *Error. Returns nil for a nil err.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: Classify(err), Err: unwrapPathError(err)}
}

// KindOf returns the Kind of err, classifying raw errors on the fly
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Classify(err)
}

// IsNotFound reports whether err means the path is absent.
// Every deletion and existence operation treats this as success.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

func IsNotEmpty(err error) bool {
	return err != nil && KindOf(err) == KindNotEmpty
}

func IsPermission(err error) bool {
	return err != nil && KindOf(err) == KindPermission
}

// Classify maps a raw error to a Kind
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	}
	return classifyPlatform(err)
}

// unwrapPathError drops the *fs.PathError layer since Error carries op and path itself
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err
	}
	return err
}
