package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, timestamp, action, path, root, depth, nodes, elevated, error_message
	FROM deletions
`

// GetRecentDeletions returns the N most recent deletion events
func (d *DeletionDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	query := selectColumns + `
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryDeletions(query, limit)
}

// GetDeletionsByDateRange returns deletions within a time range
func (d *DeletionDB) GetDeletionsByDateRange(start, end time.Time) ([]DeletionRecord, error) {
	query := selectColumns + `
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, start, end)
}

// GetDeletionsByRoot returns deletions found under one scan root
func (d *DeletionDB) GetDeletionsByRoot(root string) ([]DeletionRecord, error) {
	query := selectColumns + `
	WHERE root = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, root)
}

// GetDeletionsByPath returns deletions matching a path pattern
func (d *DeletionDB) GetDeletionsByPath(pathPattern string) ([]DeletionRecord, error) {
	query := selectColumns + `
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, pathPattern)
}

// GetDeletionsByAction returns deletions filtered by action type
func (d *DeletionDB) GetDeletionsByAction(action string) ([]DeletionRecord, error) {
	query := selectColumns + `
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryDeletions(query, action)
}

// GetLargestDeletions returns the N deletions that removed the most directories
func (d *DeletionDB) GetLargestDeletions(limit int) ([]DeletionRecord, error) {
	query := selectColumns + `
	WHERE action IN ('DELETE', 'ELEVATED_DELETE')
	ORDER BY nodes DESC, id DESC
	LIMIT ?
	`

	return d.queryDeletions(query, limit)
}

// GetDirectoriesRemoved returns how many directories were removed in a time range
func (d *DeletionDB) GetDirectoriesRemoved(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(nodes), 0)
	FROM deletions
	WHERE action IN ('DELETE', 'ELEVATED_DELETE') AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start, end).Scan(&total)
	return total, err
}

// GetDeletionCountByAction returns count of operations grouped by action
func (d *DeletionDB) GetDeletionCountByAction() (map[string]int, error) {
	return d.countGrouped(`
	SELECT action, COUNT(*)
	FROM deletions
	GROUP BY action
	`)
}

// GetDeletionCountByRoot returns count of successful deletions grouped by scan root
func (d *DeletionDB) GetDeletionCountByRoot() (map[string]int, error) {
	return d.countGrouped(`
	SELECT COALESCE(root, ''), COUNT(*)
	FROM deletions
	WHERE action IN ('DELETE', 'ELEVATED_DELETE')
	GROUP BY root
	`)
}

func (d *DeletionDB) countGrouped(query string, args ...interface{}) (map[string]int, error) {
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

// DeletionStats holds aggregated statistics
type DeletionStats struct {
	TotalDeletions     int            `json:"total_deletions"`
	TotalElevated      int            `json:"total_elevated"`
	TotalDryRun        int            `json:"total_dry_run"`
	TotalSkipped       int            `json:"total_skipped"`
	TotalErrors        int            `json:"total_errors"`
	DirectoriesRemoved int64          `json:"directories_removed"`
	ByRoot             map[string]int `json:"by_root"`
	ByAction           map[string]int `json:"by_action"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            time.Time      `json:"end_date"`
}

// GetDeletionStats returns comprehensive statistics for a time period
func (d *DeletionDB) GetDeletionStats(days int) (*DeletionStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &DeletionStats{
		StartDate: since,
		EndDate:   now,
	}

	// Total by action
	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'ELEVATED_DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeletions, &stats.TotalElevated, &stats.TotalDryRun, &stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.DirectoriesRemoved, err = d.GetDirectoriesRemoved(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByRoot, err = d.GetDeletionCountByRoot()
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetDeletionCountByAction()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// GetTopRootsByDeletionCount returns scan roots with the most deletions
func (d *DeletionDB) GetTopRootsByDeletionCount(limit int) (map[string]int, error) {
	return d.countGrouped(`
	SELECT COALESCE(root, ''), COUNT(*) as count
	FROM deletions
	WHERE action IN ('DELETE', 'ELEVATED_DELETE')
	GROUP BY root
	ORDER BY count DESC
	LIMIT ?
	`, limit)
}

// DeleteOldRecords removes records older than specified days (for cleanup)
func (d *DeletionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`
		DELETE FROM deletions WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryDeletions is a helper function to execute queries and scan results
func (d *DeletionDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		var root, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.Path, &root,
			&r.Depth, &r.Nodes, &r.Elevated, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.Root = root.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}

// GetRecentDeletionsPaginated returns paginated recent deletions with total count
func (d *DeletionDB) GetRecentDeletionsPaginated(limit, offset int) ([]DeletionRecord, int, error) {
	var totalCount int
	err := d.db.QueryRow("SELECT COUNT(*) FROM deletions").Scan(&totalCount)
	if err != nil {
		return nil, 0, err
	}

	query := selectColumns + `
	ORDER BY timestamp DESC, id DESC
	LIMIT ? OFFSET ?
	`

	records, err := d.queryDeletions(query, limit, offset)
	return records, totalCount, err
}

// GetDeletionsByActionPaginated returns paginated deletions by action
func (d *DeletionDB) GetDeletionsByActionPaginated(action string, limit, offset int) ([]DeletionRecord, int, error) {
	var totalCount int
	err := d.db.QueryRow("SELECT COUNT(*) FROM deletions WHERE action = ?", action).Scan(&totalCount)
	if err != nil {
		return nil, 0, err
	}

	query := selectColumns + `
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ? OFFSET ?
	`

	records, err := d.queryDeletions(query, action, limit, offset)
	return records, totalCount, err
}

// GetDeletionsByPathPaginated returns paginated deletions by path pattern
func (d *DeletionDB) GetDeletionsByPathPaginated(pathPattern string, limit, offset int) ([]DeletionRecord, int, error) {
	var totalCount int
	err := d.db.QueryRow("SELECT COUNT(*) FROM deletions WHERE path LIKE ?", pathPattern).Scan(&totalCount)
	if err != nil {
		return nil, 0, err
	}

	query := selectColumns + `
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ? OFFSET ?
	`

	records, err := d.queryDeletions(query, pathPattern, limit, offset)
	return records, totalCount, err
}
