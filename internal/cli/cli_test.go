package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/database"
	"dirsweep/internal/exitcodes"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test")
	app.SetOutput(&out)
	app.SetArgs(args)
	err := app.Execute(context.Background())
	return out.String(), err
}

func makeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestRmTreeIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	makeTree(t, dir, "a/b/c.txt", "a/d.txt", "e.txt")

	out, err := execute(t, "rm", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "removed 3 files")
	assert.NoDirExists(t, dir)

	out, err = execute(t, "rm", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "already absent")
}

func TestRmNoRecursiveLeavesTree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	makeTree(t, dir, "a/b.txt")

	_, err := execute(t, "rm", "--no-recursive", dir)
	require.Error(t, err)
	assert.Equal(t, exitcodes.RuntimeError, ExitCode(err))
	assert.FileExists(t, filepath.Join(dir, "a", "b.txt"))
}

func TestRmProtectedPath(t *testing.T) {
	_, err := execute(t, "rm", "/etc")
	require.Error(t, err)
	assert.Equal(t, exitcodes.SafetyViolation, ExitCode(err))
}

func TestCleanKeepsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	makeTree(t, dir, "x/y.txt", "z.txt")

	out, err := execute(t, "clean", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2 files")
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneStopsAtRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755))

	out, err := execute(t, "prune", "--root", root, filepath.Join(root, "a", "b", "c", "gone.txt"))
	require.NoError(t, err)
	assert.Contains(t, out, "pruned=true")
	assert.NoDirExists(t, filepath.Join(root, "a"))
	assert.DirExists(t, root)
}

func TestExistsExitCodes(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, "f.txt")

	out, err := execute(t, "exists", filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = execute(t, "exists", "--dir", dir)
	require.NoError(t, err)

	out, err = execute(t, "exists", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Equal(t, "false\n", out)
	assert.Equal(t, exitcodes.NotFound, ExitCode(err))

	// A directory is not a file
	_, err = execute(t, "exists", dir)
	assert.Equal(t, exitcodes.NotFound, ExitCode(err))
}

func TestStatJSON(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, "f.txt")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(filepath.Join(dir, "f.txt"), link))

	out, err := execute(t, "stat", "--json", link)
	require.NoError(t, err)
	var st statOutput
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "file", st.Type)
	assert.Equal(t, int64(1), st.Size)

	out, err = execute(t, "stat", "--json", "--no-follow", link)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "symlink", st.Type)

	_, err = execute(t, "stat", filepath.Join(dir, "missing"))
	assert.Equal(t, exitcodes.NotFound, ExitCode(err))
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := execute(t, "run", "--once")
	require.Error(t, err)
	assert.Equal(t, exitcodes.InvalidConfig, ExitCode(err))

	_, err = execute(t, "run", "--once", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, exitcodes.InvalidConfig, ExitCode(err))
}

func TestRunOnceAndHistory(t *testing.T) {
	base := t.TempDir()
	work := filepath.Join(base, "work")
	makeTree(t, work, "out/a.o", "out/b.o", "tmp/c")
	dbPath := filepath.Join(base, "state", "history.db")

	cfgPath := filepath.Join(base, "config.yaml")
	cfgBody := fmt.Sprintf(`
targets:
  - path: %s
  - path: %s
    mode: clean
allowed_roots: [%s]
logging:
  dir: %s
database_path: %s
`, filepath.Join(work, "out"), filepath.Join(work, "tmp"), work, filepath.Join(base, "logs"), dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	_, err := execute(t, "run", "--once", "--config", cfgPath)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(work, "out"))
	assert.DirExists(t, filepath.Join(work, "tmp"))
	assert.NoFileExists(t, filepath.Join(work, "tmp", "c"))

	out, err := execute(t, "history", "--config", cfgPath, "--recent", "5", "--json")
	require.NoError(t, err)
	var recs []database.SweepRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)

	files := 0
	for _, r := range recs {
		files += r.FilesRemoved
	}
	assert.Equal(t, 3, files)

	out, err = execute(t, "history", "--db", dbPath, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Files Removed:  3")
}

func TestRunSafetyViolation(t *testing.T) {
	base := t.TempDir()
	cfgPath := filepath.Join(base, "config.yaml")
	cfgBody := fmt.Sprintf(`
targets:
  - path: /etc/dirsweep-test
logging:
  dir: %s
`, filepath.Join(base, "logs"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	_, err := execute(t, "run", "--once", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, exitcodes.SafetyViolation, ExitCode(err))
}

func TestHistoryRequiresQuery(t *testing.T) {
	_, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "h.db"))
	require.Error(t, err)
	assert.Equal(t, exitcodes.InvalidConfig, ExitCode(err))
}

func TestRunOnceClosesLogFile(t *testing.T) {
	base := t.TempDir()
	work := filepath.Join(base, "work")
	makeTree(t, work, "out/a.o")
	logDir := filepath.Join(base, "logs")

	cfgPath := filepath.Join(base, "config.yaml")
	cfgBody := fmt.Sprintf(`
targets:
  - path: %s
allowed_roots: [%s]
logging:
  dir: %s
`, filepath.Join(work, "out"), work, logDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	var out bytes.Buffer
	app := NewApp("test")
	app.SetOutput(&out)
	app.SetArgs([]string{"run", "--once", "--config", cfgPath})
	require.NoError(t, app.Execute(context.Background()))

	assert.Nil(t, app.logCloser)
	assert.Nil(t, app.logger)

	data, err := os.ReadFile(filepath.Join(logDir, "sweep.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sweep completed successfully")
}

func TestCleanRefusesFile(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, "notes.txt")
	file := filepath.Join(dir, "notes.txt")

	_, err := execute(t, "clean", file)
	require.Error(t, err)
	assert.Equal(t, exitcodes.SafetyViolation, ExitCode(err))
	assert.FileExists(t, file)
}

func TestPruneRefusesBoundAboveAllowedRoot(t *testing.T) {
	base := t.TempDir()
	work := filepath.Join(base, "work")
	require.NoError(t, os.MkdirAll(filepath.Join(work, "a", "b"), 0o755))

	cfgPath := filepath.Join(base, "config.yaml")
	cfgBody := fmt.Sprintf(`
targets:
  - path: %s
allowed_roots: [%s]
`, filepath.Join(work, "a"), work)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	leaf := filepath.Join(work, "a", "b", "gone.txt")
	_, err := execute(t, "prune", "--config", cfgPath, "--root", base, leaf)
	require.Error(t, err)
	assert.Equal(t, exitcodes.SafetyViolation, ExitCode(err))
	assert.DirExists(t, filepath.Join(work, "a", "b"))

	out, err := execute(t, "prune", "--config", cfgPath, leaf)
	require.NoError(t, err)
	assert.Contains(t, out, "pruned=true")
	assert.NoDirExists(t, filepath.Join(work, "a"))
	assert.DirExists(t, work)
}
