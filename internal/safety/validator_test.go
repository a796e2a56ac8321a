package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"dirsweep/internal/config"
	"dirsweep/internal/fsops"
)

func TestCheckPathProtected(t *testing.T) {
	v := NewRemoteValidator([]string{"/"}, []string{"/srv/keep"})

	tests := []struct {
		path    string
		blocked bool
	}{
		{"/", true},
		{"/etc", true},
		{"/etc/dirsweep/config.yaml", true},
		{"/usr/local/build", true},
		{"/boot/grub2", true},
		{"/proc/1", true},
		{"/var/lib/dirsweep/history.db", true},
		{"/srv/keep", true},
		{"/srv/keep/out", true},
		{"/srv/keeper", false},
		{"/etcetera/out", false},
		{"/var/lib/docker/tmp", false},
		{"/tmp/build", false},
		{"/home/ci/workspace/dist", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := v.CheckPath(tt.path)
			if blocked := errors.Is(err, ErrProtectedPath); blocked != tt.blocked {
				t.Errorf("CheckPath(%s) = %v, blocked expected %v", tt.path, err, tt.blocked)
			}
		})
	}
}

func TestCheckPathRemote(t *testing.T) {
	v := NewRemoteValidator([]string{"/srv/app", "/data/cache/"}, nil)

	tests := []struct {
		name string
		path string
		want string
		err  error
	}{
		{"target inside root", "/srv/app/dist", "/srv/app/dist", nil},
		{"root itself", "/srv/app", "/srv/app", nil},
		{"trailing slash root", "/data/cache/x", "/data/cache/x", nil},
		{"uncleaned target", "/srv/app//out/./bin", "/srv/app/out/bin", nil},
		{"sibling with shared prefix", "/srv/application", "", ErrOutsideAllowed},
		{"parent of root", "/srv", "", ErrOutsideAllowed},
		{"dotdot out of root", "/srv/app/../../etc/cron.d", "", ErrTraversal},
		{"dotdot staying inside", "/srv/app/a/../b", "", ErrTraversal},
		{"relative target", "dist", "", ErrInvalidPath},
		{"empty target", "", "", ErrInvalidPath},
		{"blank target", "  ", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.CheckPath(tt.path)
			if !errors.Is(err, tt.err) || (tt.err == nil && err != nil) {
				t.Fatalf("CheckPath(%q) error = %v, expected %v", tt.path, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("CheckPath(%q) = %q, expected %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckPathLocalRelative(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator([]string{"."}, nil)

	got, err := v.CheckPath("testdata-absent/out")
	if err != nil {
		t.Fatalf("CheckPath: %v", err)
	}
	if want := filepath.Join(wd, "testdata-absent", "out"); got != want {
		t.Errorf("CheckPath = %q, expected %q", got, want)
	}
}

func TestRootFor(t *testing.T) {
	v := NewRemoteValidator([]string{"/srv", "/srv/app", "/data"}, nil)

	tests := []struct {
		path string
		root string
		ok   bool
	}{
		{"/srv/app/dist", "/srv/app", true},
		{"/srv/other", "/srv", true},
		{"/srv", "/srv", true},
		{"/srvx/file", "", false},
		{"/home", "", false},
	}

	for _, tt := range tests {
		root, ok := v.RootFor(tt.path)
		if root != tt.root || ok != tt.ok {
			t.Errorf("RootFor(%s) = %q, %v; expected %q, %v", tt.path, root, ok, tt.root, tt.ok)
		}
	}
}

func TestCheckPathSymlinks(t *testing.T) {
	tmpDir := t.TempDir()
	workspace := filepath.Join(tmpDir, "workspace")
	secrets := filepath.Join(tmpDir, "secrets")
	for _, d := range []string{filepath.Join(workspace, "dist"), secrets} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	// A build output linked out of the workspace, and one linked within it
	if err := os.Symlink(secrets, filepath.Join(workspace, "out")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(workspace, "dist"), filepath.Join(workspace, "latest")); err != nil {
		t.Fatal(err)
	}
	// The allowed root is reached through a link of its own
	linkedRoot := filepath.Join(tmpDir, "ws")
	if err := os.Symlink(workspace, linkedRoot); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		roots []string
		path  string
		err   error
	}{
		{"link escapes root", []string{workspace}, filepath.Join(workspace, "out"), ErrSymlinkEscape},
		{"missing entry below escaping link", []string{workspace}, filepath.Join(workspace, "out", "x"), nil},
		{"link stays inside", []string{workspace}, filepath.Join(workspace, "latest"), nil},
		{"plain directory", []string{workspace}, filepath.Join(workspace, "dist"), nil},
		{"missing target", []string{workspace}, filepath.Join(workspace, "never-built"), nil},
		{"root given through a link", []string{linkedRoot}, filepath.Join(linkedRoot, "dist"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(tt.roots, nil).CheckPath(tt.path)
			if !errors.Is(err, tt.err) || (tt.err == nil && err != nil) {
				t.Errorf("CheckPath(%s) = %v, expected %v", tt.path, err, tt.err)
			}
		})
	}

	// Symlinks are not resolved on a remote backend
	if _, err := NewRemoteValidator([]string{workspace}, nil).CheckPath(filepath.Join(workspace, "out")); err != nil {
		t.Errorf("remote CheckPath followed a local symlink: %v", err)
	}
}

func TestCheckTargetModes(t *testing.T) {
	fake := fsops.NewFakeFS()
	fake.AddFile("/srv/app/build.log")
	fake.AddSymlink("/srv/app/current")
	fake.AddFile("/srv/app/cache/a.o")
	fake.Fail("lstat", "/srv/app/locked", fsops.KindPermission)

	v := NewRemoteValidator([]string{"/srv"}, nil)
	ctx := context.Background()

	tests := []struct {
		target config.Target
		err    error
	}{
		{config.Target{Path: "/srv/app/cache", Mode: config.ModeClean}, nil},
		{config.Target{Path: "/srv/app/build.log", Mode: config.ModeClean}, ErrNotDirectory},
		{config.Target{Path: "/srv/app/current", Mode: config.ModeClean}, ErrNotDirectory},
		{config.Target{Path: "/srv/app/never-built", Mode: config.ModeClean}, nil},
		{config.Target{Path: "/srv/app/locked", Mode: config.ModeClean}, nil},
		{config.Target{Path: "/srv/app/build.log", Mode: config.ModeDelete}, nil},
		{config.Target{Path: "/etc/app", Mode: config.ModeClean}, ErrProtectedPath},
		{config.Target{Path: "/opt/app", Mode: config.ModeDelete}, ErrOutsideAllowed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.target.Mode, tt.target.Path), func(t *testing.T) {
			err := v.CheckTarget(ctx, tt.target, fake.Lstat)
			if !errors.Is(err, tt.err) || (tt.err == nil && err != nil) {
				t.Errorf("CheckTarget = %v, expected %v", err, tt.err)
			}
		})
	}
}

func TestCheckTargetDeleteSkipsStat(t *testing.T) {
	fake := fsops.NewFakeFS()
	fake.AddFile("/srv/out/a")
	v := NewRemoteValidator([]string{"/srv"}, nil)

	if err := v.CheckTarget(context.Background(), config.Target{Path: "/srv/out", Mode: config.ModeDelete}, fake.Lstat); err != nil {
		t.Fatalf("CheckTarget: %v", err)
	}
	if n := fake.CallCount("lstat"); n != 0 {
		t.Errorf("delete target issued %d lstat calls, expected 0", n)
	}
}

func TestPruneBound(t *testing.T) {
	v := NewRemoteValidator([]string{"/srv", "/srv/app"}, nil)

	tests := []struct {
		name  string
		path  string
		bound string
		want  string
		err   error
	}{
		{"default is nearest root", "/srv/app/releases/v1", "", "/srv/app", nil},
		{"outer root by default", "/srv/web/v1", "", "/srv", nil},
		{"bound inside root", "/srv/app/releases/v1/bin", "/srv/app/releases", "/srv/app/releases", nil},
		{"bound equal to root", "/srv/app/releases/v1", "/srv/app/", "/srv/app", nil},
		{"bound above nearest root", "/srv/app/releases/v1", "/srv", "", ErrPruneBound},
		{"bound above every root", "/srv/app/releases/v1", "/", "", ErrPruneBound},
		{"bound is the path", "/srv/app/releases", "/srv/app/releases", "", ErrPruneBound},
		{"bound below the path", "/srv/app/releases", "/srv/app/releases/v1", "", ErrPruneBound},
		{"bound on another branch", "/srv/app/releases/v1", "/srv/app/cache", "", ErrPruneBound},
		{"path outside roots", "/opt/app/v1", "", "", ErrOutsideAllowed},
		{"dotdot in bound", "/srv/app/releases/v1", "/srv/app/releases/..", "", ErrTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.PruneBound(tt.path, tt.bound)
			if !errors.Is(err, tt.err) || (tt.err == nil && err != nil) {
				t.Fatalf("PruneBound(%s, %q) error = %v, expected %v", tt.path, tt.bound, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("PruneBound(%s, %q) = %q, expected %q", tt.path, tt.bound, got, tt.want)
			}
		})
	}
}

func TestIsViolation(t *testing.T) {
	v := NewRemoteValidator([]string{"/srv"}, nil)

	_, err := v.CheckPath("/etc")
	if !IsViolation(fmt.Errorf("target /etc: %w", err)) {
		t.Errorf("wrapped %v not reported as a violation", err)
	}
	_, err = v.PruneBound("/srv/a/b", "/")
	if !IsViolation(err) {
		t.Errorf("%v not reported as a violation", err)
	}
	if IsViolation(&fsops.Error{Op: "rmdir", Path: "/srv/a", Kind: fsops.KindNotEmpty}) {
		t.Error("filesystem error reported as a violation")
	}
	if IsViolation(nil) {
		t.Error("nil reported as a violation")
	}
}
