package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dirsweep/internal/database"
	"dirsweep/internal/exitcodes"
)

const defaultDBPath = "/var/lib/dirsweep/history.db"

type historyOptions struct {
	dbPath      string
	recent      int
	stats       bool
	days        int
	action      string
	pathPattern string
	runID       string
	purgeDays   int
	jsonOutput  bool
}

func (a *App) newHistoryCmd() *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the sweep history database",
		Example: `  dirsweep history --recent 10
  dirsweep history --stats --days 7
  dirsweep history --action ERROR
  dirsweep history --path '/srv/%'
  dirsweep history --purge 90`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", "", "path to history database (default: database_path from --config, else "+defaultDBPath+")")
	f.IntVar(&opts.recent, "recent", 0, "show N most recent target outcomes")
	f.BoolVar(&opts.stats, "stats", false, "show sweep statistics")
	f.IntVar(&opts.days, "days", 30, "number of days for statistics")
	f.StringVar(&opts.action, "action", "", "filter by action (DELETE, CLEAN, SKIP, ERROR)")
	f.StringVar(&opts.pathPattern, "path", "", "filter by path pattern (SQL LIKE syntax)")
	f.StringVar(&opts.runID, "run", "", "show every target of one run")
	f.IntVar(&opts.purgeDays, "purge", 0, "delete records older than N days and vacuum")
	f.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	return cmd
}

func (a *App) runHistory(cmd *cobra.Command, opts historyOptions) error {
	dbPath := opts.dbPath
	if dbPath == "" && a.configPath != "" {
		cfg, err := a.loadConfig(true)
		if err != nil {
			return err
		}
		dbPath = cfg.DatabasePath
	}
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	db, err := database.NewHistoryDB(dbPath)
	if err != nil {
		return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to open database " + dbPath, Err: err}
	}
	defer db.Close()

	var records []database.SweepRecord
	switch {
	case opts.purgeDays > 0:
		n, err := db.DeleteOldRecords(opts.purgeDays)
		if err != nil {
			return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to purge records", Err: err}
		}
		if err := db.Vacuum(); err != nil {
			return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to vacuum database", Err: err}
		}
		fmt.Fprintf(a.out, "purged %d records older than %d days\n", n, opts.purgeDays)
		return nil
	case opts.stats:
		stats, err := db.GetSweepStats(opts.days)
		if err != nil {
			return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to get statistics", Err: err}
		}
		if opts.jsonOutput {
			return a.printJSON(stats)
		}
		a.printStats(stats, opts.days)
		return nil
	case opts.recent > 0:
		records, err = db.GetRecentSweeps(opts.recent)
	case opts.runID != "":
		records, err = db.GetSweepsByRun(opts.runID)
	case opts.action != "":
		records, err = db.GetSweepsByAction(opts.action)
	case opts.pathPattern != "":
		records, err = db.GetSweepsByPath(opts.pathPattern)
	default:
		return &ExitError{Code: exitcodes.InvalidConfig, Message: "one of --recent, --stats, --run, --action, --path or --purge is required\n\n" + cmd.UsageString()}
	}
	if err != nil {
		return &ExitError{Code: exitcodes.RuntimeError, Message: "failed to query history", Err: err}
	}

	if opts.jsonOutput {
		return a.printJSON(records)
	}
	a.printRecords(records)
	return nil
}

func (a *App) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(data))
	return nil
}

func (a *App) printStats(stats *database.SweepStats, days int) {
	fmt.Fprintf(a.out, "Sweep Statistics (Last %d days)\n", days)
	fmt.Fprintf(a.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(a.out, "Runs:           %d\n", stats.Runs)
	fmt.Fprintf(a.out, "Targets:        %d\n", stats.Targets)
	fmt.Fprintf(a.out, "Skipped:        %d\n", stats.Skipped)
	fmt.Fprintf(a.out, "Errors:         %d\n", stats.Errors)
	fmt.Fprintf(a.out, "Files Removed:  %d\n\n", stats.FilesRemoved)

	if len(stats.ByAction) > 0 {
		fmt.Fprintln(a.out, "By Action:")
		for _, action := range sortedKeys(stats.ByAction) {
			fmt.Fprintf(a.out, "  %-15s %d\n", action, stats.ByAction[action])
		}
		fmt.Fprintln(a.out)
	}

	if len(stats.TopPaths) > 0 {
		fmt.Fprintln(a.out, "Top Paths (files removed):")
		for _, path := range sortedKeys(stats.TopPaths) {
			fmt.Fprintf(a.out, "  %-40s %d\n", path, stats.TopPaths[path])
		}
	}
}

func (a *App) printRecords(records []database.SweepRecord) {
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records found")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tMode\tFiles\tPruned\tPath\tError")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----\t-----\t------\t----\t-----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.Mode, r.FilesRemoved, r.Pruned, r.Path, r.ErrorMessage)
	}
	_ = w.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
