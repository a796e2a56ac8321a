package safety

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"dirsweep/internal/config"
	"dirsweep/internal/fsops"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
	ErrNotDirectory   = errors.New("clean target is not a directory")
	ErrPruneBound     = errors.New("invalid prune bound")
)

// systemPaths are never swept, nor is anything beneath them. "/" itself is
// refused separately.
var systemPaths = []string{
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/var/lib/dirsweep",
}

// StatFunc reports the status of a path without following a final symlink
type StatFunc func(ctx context.Context, path string) (fsops.Status, error)

// Validator authorizes sweep targets against the allowed roots and the
// protected system paths.
type Validator struct {
	roots     []string
	protected []string
	// local enables symlink resolution; remote paths are checked lexically
	local bool
}

// NewValidator returns a validator for targets on the local filesystem
func NewValidator(roots, extraProtected []string) *Validator {
	return newValidator(roots, extraProtected, true)
}

// NewRemoteValidator returns a validator for targets on a remote backend.
// Paths must be absolute since the server's working directory is unknown.
func NewRemoteValidator(roots, extraProtected []string) *Validator {
	return newValidator(roots, extraProtected, false)
}

func newValidator(roots, extraProtected []string, local bool) *Validator {
	v := &Validator{local: local}
	for _, r := range roots {
		if p, err := v.clean(r); err == nil {
			v.roots = append(v.roots, p)
		}
	}
	v.protected = append(v.protected, systemPaths...)
	for _, p := range extraProtected {
		if cp, err := v.clean(p); err == nil {
			v.protected = append(v.protected, cp)
		}
	}
	return v
}

// CheckPath authorizes removing path and returns it in clean absolute form
func (v *Validator) CheckPath(path string) (string, error) {
	if hasDotDot(path) {
		return "", ErrTraversal
	}
	p, err := v.clean(path)
	if err != nil {
		return "", err
	}
	if v.isProtected(p) {
		return "", ErrProtectedPath
	}
	if _, ok := v.RootFor(p); !ok {
		return "", ErrOutsideAllowed
	}
	if v.local {
		if err := v.checkLinks(p); err != nil {
			return "", err
		}
	}
	return p, nil
}

// CheckTarget authorizes a sweep target. A clean target that exists must be a
// real directory; lstat is consulted only for clean targets.
func (v *Validator) CheckTarget(ctx context.Context, t config.Target, lstat StatFunc) error {
	p, err := v.CheckPath(t.Path)
	if err != nil {
		return err
	}
	if t.Mode != config.ModeClean || lstat == nil {
		return nil
	}

	st, err := lstat(ctx, p)
	if err != nil {
		// A missing target is already clean; other failures surface from CleanDir
		return nil
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is a %s", ErrNotDirectory, p, st.Type)
	}
	return nil
}

// PruneBound returns the directory at which pruning the empty ancestors of
// path must stop. An empty bound selects the most specific allowed root
// containing path. An explicit bound must lie inside that root and strictly
// above path.
func (v *Validator) PruneBound(path, bound string) (string, error) {
	if hasDotDot(path) || hasDotDot(bound) {
		return "", ErrTraversal
	}
	p, err := v.clean(path)
	if err != nil {
		return "", err
	}
	root, ok := v.RootFor(p)
	if !ok {
		return "", ErrOutsideAllowed
	}
	if bound == "" {
		return root, nil
	}

	b, err := v.clean(bound)
	if err != nil {
		return "", err
	}
	if !within(b, root) {
		return "", fmt.Errorf("%w: %s is above allowed root %s", ErrPruneBound, b, root)
	}
	if b == p || !within(p, b) {
		return "", fmt.Errorf("%w: %s does not contain %s", ErrPruneBound, b, p)
	}
	return b, nil
}

// RootFor returns the most specific allowed root containing p
func (v *Validator) RootFor(p string) (string, bool) {
	best := ""
	for _, r := range v.roots {
		if within(p, r) && len(r) > len(best) {
			best = r
		}
	}
	return best, best != ""
}

// IsViolation reports whether err is a refusal from the validator
func IsViolation(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidPath,
		ErrProtectedPath,
		ErrOutsideAllowed,
		ErrTraversal,
		ErrSymlinkEscape,
		ErrNotDirectory,
		ErrPruneBound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (v *Validator) clean(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrInvalidPath
	}
	if !v.local {
		if !filepath.IsAbs(p) {
			return "", fmt.Errorf("%w: %s is not absolute", ErrInvalidPath, p)
		}
		return filepath.Clean(p), nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}

func (v *Validator) isProtected(p string) bool {
	if p == string(filepath.Separator) {
		return true
	}
	for _, prot := range v.protected {
		if prot != string(filepath.Separator) && within(p, prot) {
			return true
		}
	}
	return false
}

// checkLinks requires p, with every symlink resolved, to stay inside an
// allowed root. Roots are compared both as written and resolved.
func (v *Validator) checkLinks(p string) error {
	resolved, err := filepath.EvalSymlinks(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, r := range v.roots {
		if within(resolved, r) {
			return nil
		}
		if rr, err := filepath.EvalSymlinks(r); err == nil && within(resolved, rr) {
			return nil
		}
	}
	return ErrSymlinkEscape
}

func within(p, root string) bool {
	if root == string(filepath.Separator) {
		return true
	}
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

func hasDotDot(raw string) bool {
	for _, part := range strings.Split(filepath.ToSlash(raw), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
