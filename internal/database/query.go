package database

import (
	"database/sql"
	"time"
)

const selectSweeps = `
	SELECT id, run_id, timestamp, action, path, mode, backend,
	       files_removed, pruned, duration_ms, error_message
	FROM sweeps
`

// GetRecentSweeps returns the N most recent target outcomes
func (d *HistoryDB) GetRecentSweeps(limit int) ([]SweepRecord, error) {
	return d.querySweeps(selectSweeps+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetSweepsByRun returns every target outcome of one run
func (d *HistoryDB) GetSweepsByRun(runID string) ([]SweepRecord, error) {
	return d.querySweeps(selectSweeps+`
	WHERE run_id = ?
	ORDER BY id
	`, runID)
}

// GetSweepsByPath returns outcomes matching a path pattern (SQL LIKE syntax)
func (d *HistoryDB) GetSweepsByPath(pathPattern string) ([]SweepRecord, error) {
	return d.querySweeps(selectSweeps+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetSweepsByAction returns outcomes filtered by action
func (d *HistoryDB) GetSweepsByAction(action string) ([]SweepRecord, error) {
	return d.querySweeps(selectSweeps+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// SweepStats holds aggregated statistics
type SweepStats struct {
	Runs         int            `json:"runs"`
	Targets      int            `json:"targets"`
	Errors       int            `json:"errors"`
	Skipped      int            `json:"skipped"`
	FilesRemoved int64          `json:"files_removed"`
	ByAction     map[string]int `json:"by_action"`
	TopPaths     map[string]int `json:"top_paths"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
}

// GetSweepStats returns statistics for the last N days
func (d *HistoryDB) GetSweepStats(days int) (*SweepStats, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	stats := &SweepStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(DISTINCT run_id),
			COUNT(*),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COALESCE(SUM(files_removed), 0)
		FROM sweeps
		WHERE timestamp >= ?
	`, since).Scan(&stats.Runs, &stats.Targets, &stats.Errors, &stats.Skipped, &stats.FilesRemoved)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.countBy(`
		SELECT action, COUNT(*)
		FROM sweeps
		WHERE timestamp >= ?
		GROUP BY action
	`, since)
	if err != nil {
		return nil, err
	}

	stats.TopPaths, err = d.countBy(`
		SELECT path, SUM(files_removed) AS removed
		FROM sweeps
		WHERE timestamp >= ? AND files_removed > 0
		GROUP BY path
		ORDER BY removed DESC
		LIMIT 10
	`, since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM sweeps WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (d *HistoryDB) querySweeps(query string, args ...interface{}) ([]SweepRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SweepRecord
	for rows.Next() {
		var r SweepRecord
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Path, &r.Mode, &r.Backend,
			&r.FilesRemoved, &r.Pruned, &r.DurationMs, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
