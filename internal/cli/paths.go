package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dirsweep/internal/config"
	"dirsweep/internal/exitcodes"
	"dirsweep/internal/fsops"
	"dirsweep/internal/fsutil"
)

// withFileSystem loads the optional config and opens its backend for fn
func (a *App) withFileSystem(fn func(cfg *config.Config, fsys *fsutil.FileSystem) error) error {
	cfg, err := a.loadConfig(false)
	if err != nil {
		return err
	}
	fsys, closeFS, err := a.openFileSystem(cfg)
	if err != nil {
		return err
	}
	defer closeFS()
	return fn(cfg, fsys)
}

// authorize runs the safety validator on an ad-hoc target. Without
// configured roots the path's parent is the only allowed root.
func authorize(ctx context.Context, cfg *config.Config, fsys *fsutil.FileSystem, target config.Target) error {
	roots := cfg.AllowedRoots
	if len(roots) == 0 {
		abs, err := filepath.Abs(target.Path)
		if err != nil {
			return runtimeError("invalid path", err)
		}
		roots = []string{filepath.Dir(abs)}
	}
	if err := newValidator(cfg, roots).CheckTarget(ctx, target, fsys.GetLinkStat); err != nil {
		return runtimeError("refusing to "+target.Mode+" "+target.Path, err)
	}
	return nil
}

func (a *App) newRmCmd() *cobra.Command {
	var noRecursive bool

	cmd := &cobra.Command{
		Use:   "rm <path> [path...]",
		Short: "Delete files or directory trees; missing paths are not an error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(func(cfg *config.Config, fsys *fsutil.FileSystem) error {
				for _, p := range args {
					if err := a.remove(cmd.Context(), cfg, fsys, p, !noRecursive); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noRecursive, "no-recursive", false, "only remove empty directories")
	return cmd
}

func (a *App) remove(ctx context.Context, cfg *config.Config, fsys *fsutil.FileSystem, path string, recursive bool) error {
	if err := authorize(ctx, cfg, fsys, config.Target{Path: path, Mode: config.ModeDelete}); err != nil {
		return err
	}

	st, err := fsys.GetLinkStat(ctx, path)
	if fsops.IsNotFound(err) {
		fmt.Fprintf(a.out, "%s: already absent\n", path)
		return nil
	}
	if err != nil {
		return runtimeError("stat "+path, err)
	}

	if st.IsDir() {
		n, err := fsys.DeleteDir(ctx, path, recursive)
		if err != nil {
			return runtimeError("delete "+path, err)
		}
		fmt.Fprintf(a.out, "%s: removed %d files\n", path, n)
		return nil
	}

	removed, err := fsys.DeleteFile(ctx, path)
	if err != nil {
		return runtimeError("delete "+path, err)
	}
	if removed {
		fmt.Fprintf(a.out, "%s: removed 1 files\n", path)
	} else {
		fmt.Fprintf(a.out, "%s: already absent\n", path)
	}
	return nil
}

func (a *App) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <dir> [dir...]",
		Short: "Delete everything inside directories, keeping the directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(func(cfg *config.Config, fsys *fsutil.FileSystem) error {
				for _, p := range args {
					if err := authorize(cmd.Context(), cfg, fsys, config.Target{Path: p, Mode: config.ModeClean}); err != nil {
						return err
					}
					n, err := fsys.CleanDir(cmd.Context(), p)
					if err != nil {
						return runtimeError("clean "+p, err)
					}
					fmt.Fprintf(a.out, "%s: removed %d files\n", p, n)
				}
				return nil
			})
		},
	}
}

func (a *App) newPruneCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "prune <path>",
		Short: "Remove empty ancestors of path, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(func(cfg *config.Config, fsys *fsutil.FileSystem) error {
				path := filepath.Clean(args[0])
				roots := cfg.AllowedRoots
				if len(roots) == 0 && root != "" {
					roots = []string{root}
				}

				var pruned bool
				if len(roots) == 0 {
					pruned = fsys.DeletePathIfEmpty(cmd.Context(), path)
				} else {
					bound, err := newValidator(cfg, roots).PruneBound(path, root)
					if err != nil {
						return runtimeError("refusing to prune "+path, err)
					}
					pruned = fsys.DeletePathIfEmptyWithin(cmd.Context(), path, bound)
				}
				fmt.Fprintf(a.out, "pruned=%t\n", pruned)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "never remove this directory or anything above it; must lie inside an allowed root (default: the allowed root containing path)")
	return cmd
}

func (a *App) newExistsCmd() *cobra.Command {
	var dir bool

	cmd := &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether path is an existing file (or directory with --dir)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(func(cfg *config.Config, fsys *fsutil.FileSystem) error {
				check := fsys.ExistsFile
				if dir {
					check = fsys.ExistsDir
				}
				ok, err := check(cmd.Context(), args[0])
				if err != nil {
					return runtimeError("check "+args[0], err)
				}
				fmt.Fprintln(a.out, ok)
				if !ok {
					return &ExitError{Code: exitcodes.NotFound, Message: args[0] + ": not found"}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dir, "dir", false, "check for a directory instead of a regular file")
	return cmd
}

type statOutput struct {
	Path    string    `json:"path"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	Mode    string    `json:"mode"`
	ModTime time.Time `json:"mod_time"`
}

func (a *App) newStatCmd() *cobra.Command {
	var noFollow, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Print the status of path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFileSystem(func(cfg *config.Config, fsys *fsutil.FileSystem) error {
				get := fsys.GetStat
				if noFollow {
					get = fsys.GetLinkStat
				}
				st, err := get(cmd.Context(), args[0])
				if fsops.IsNotFound(err) {
					return &ExitError{Code: exitcodes.NotFound, Message: args[0] + ": not found"}
				}
				if err != nil {
					return runtimeError("stat "+args[0], err)
				}

				out := statOutput{
					Path:    args[0],
					Type:    st.Type.String(),
					Size:    st.Size,
					Mode:    st.Mode.String(),
					ModTime: st.ModTime,
				}
				if jsonOutput {
					data, err := json.MarshalIndent(out, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(a.out, string(data))
					return nil
				}
				fmt.Fprintf(a.out, "path:     %s\ntype:     %s\nsize:     %d\nmode:     %s\nmodified: %s\n",
					out.Path, out.Type, out.Size, out.Mode, out.ModTime.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "do not follow a final symlink")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}
