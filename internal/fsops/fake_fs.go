package fsops

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	errFakeNotExist = errors.New("no such file or directory")
	errFakeNotEmpty = errors.New("directory not empty")
	errFakeIsDir    = errors.New("is a directory")
	errFakeNotDir   = errors.New("not a directory")
)

// FakeFS implements FS in memory for testing.
// Records every call and supports injected failures and mid-operation hooks.
type FakeFS struct {
	mu       sync.Mutex
	nodes    map[string]FileType
	failures map[string]error
	hooks    map[string]func(*FakeFS)
	Calls    []string
}

// NewFakeFS creates an empty fake filesystem containing only "/"
func NewFakeFS() *FakeFS {
	return &FakeFS{
		nodes:    map[string]FileType{"/": TypeDirectory},
		failures: map[string]error{},
		hooks:    map[string]func(*FakeFS){},
	}
}

// AddDir creates a directory and any missing parents
func (f *FakeFS) AddDir(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(filepath.Clean(name), TypeDirectory)
}

// AddFile creates a regular file and any missing parent directories
func (f *FakeFS) AddFile(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(filepath.Clean(name), TypeFile)
}

// AddSymlink creates a symlink entry. Stat and Lstat both report it as a symlink.
func (f *FakeFS) AddSymlink(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(filepath.Clean(name), TypeSymlink)
}

func (f *FakeFS) addLocked(name string, t FileType) {
	for dir := filepath.Dir(name); ; dir = filepath.Dir(dir) {
		if _, ok := f.nodes[dir]; !ok {
			f.nodes[dir] = TypeDirectory
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	f.nodes[name] = t
}

// Exists reports whether name is present
func (f *FakeFS) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[filepath.Clean(name)]
	return ok
}

// Fail makes every subsequent op on name return a *Error of the given kind
func (f *FakeFS) Fail(op, name string, kind Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = filepath.Clean(name)
	f.failures[op+":"+name] = &Error{Op: op, Path: name, Kind: kind, Err: errors.New("injected " + kind.String())}
}

// Before runs hook once, right before the next op on name executes
func (f *FakeFS) Before(op, name string, hook func(*FakeFS)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[op+":"+filepath.Clean(name)] = hook
}

// CallCount returns how many times op was invoked
func (f *FakeFS) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if len(c) > len(op) && c[:len(op)+1] == op+":" {
			n++
		}
	}
	return n
}

func (f *FakeFS) begin(op, name string) (string, error) {
	name = filepath.Clean(name)
	key := op + ":" + name

	f.mu.Lock()
	f.Calls = append(f.Calls, key)
	hook := f.hooks[key]
	delete(f.hooks, key)
	f.mu.Unlock()

	if hook != nil {
		hook(f)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[key]; err != nil {
		return name, err
	}
	return name, nil
}

func (f *FakeFS) Stat(ctx context.Context, name string) (Status, error) {
	return f.stat(ctx, "stat", name)
}

func (f *FakeFS) Lstat(ctx context.Context, name string) (Status, error) {
	return f.stat(ctx, "lstat", name)
}

func (f *FakeFS) stat(_ context.Context, op, name string) (Status, error) {
	name, err := f.begin(op, name)
	if err != nil {
		return Status{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.nodes[name]
	if !ok {
		return Status{}, f.errLocked(op, name, KindNotFound, errFakeNotExist)
	}
	mode := fs.FileMode(0o644)
	switch t {
	case TypeDirectory:
		mode = fs.ModeDir | 0o755
	case TypeSymlink:
		mode = fs.ModeSymlink | 0o777
	}
	return Status{Name: filepath.Base(name), Type: t, Mode: mode, ModTime: time.Unix(0, 0)}, nil
}

func (f *FakeFS) ReadDir(_ context.Context, name string) ([]string, error) {
	name, err := f.begin("readdir", name)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.nodes[name]
	if !ok {
		return nil, f.errLocked("readdir", name, KindNotFound, errFakeNotExist)
	}
	if t != TypeDirectory {
		return nil, f.errLocked("readdir", name, KindOther, errFakeNotDir)
	}
	return f.childrenLocked(name), nil
}

func (f *FakeFS) Unlink(_ context.Context, name string) error {
	name, err := f.begin("unlink", name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.nodes[name]
	if !ok {
		return f.errLocked("unlink", name, KindNotFound, errFakeNotExist)
	}
	if t == TypeDirectory {
		return f.errLocked("unlink", name, KindOther, errFakeIsDir)
	}
	delete(f.nodes, name)
	return nil
}

func (f *FakeFS) Rmdir(_ context.Context, name string) error {
	name, err := f.begin("rmdir", name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.nodes[name]
	if !ok {
		return f.errLocked("rmdir", name, KindNotFound, errFakeNotExist)
	}
	if t != TypeDirectory {
		return f.errLocked("rmdir", name, KindOther, errFakeNotDir)
	}
	if len(f.childrenLocked(name)) > 0 {
		return f.errLocked("rmdir", name, KindNotEmpty, errFakeNotEmpty)
	}
	delete(f.nodes, name)
	return nil
}

func (f *FakeFS) childrenLocked(dir string) []string {
	var names []string
	for p := range f.nodes {
		if p != dir && filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	sort.Strings(names)
	return names
}

func (f *FakeFS) errLocked(op, name string, kind Kind, err error) error {
	return &Error{Op: op, Path: name, Kind: kind, Err: err}
}
