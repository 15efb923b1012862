package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded in the history table.
const (
	ActionDelete         = "DELETE"
	ActionElevatedDelete = "ELEVATED_DELETE"
	ActionDryRun         = "DRY_RUN"
	ActionSkip           = "SKIP"
	ActionError          = "ERROR"
)

// DeletionDB manages the SQLite database for deletion history
type DeletionDB struct {
	db *sql.DB
}

// DeletionRecord represents a single deletion attempt of one empty hierarchy
type DeletionRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	// Root is the scan root the hierarchy was found under.
	Root  string `json:"root"`
	Depth int    `json:"depth"`
	// Nodes counts the directories in the hierarchy, its top included.
	Nodes        int    `json:"nodes"`
	Elevated     bool   `json:"elevated"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewDeletionDB creates a new database connection and initializes schema
func NewDeletionDB(dbPath string) (*DeletionDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// SELECT 1 instead of Ping() so the file is created on first use
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	ddb := &DeletionDB{db: db}
	if err = ddb.initSchema(); err != nil {
		return nil, err
	}

	err = nil
	return ddb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *DeletionDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		root TEXT,
		depth INTEGER NOT NULL DEFAULT 0,
		nodes INTEGER NOT NULL DEFAULT 1,
		elevated INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_path ON deletions(path);
	CREATE INDEX IF NOT EXISTS idx_root ON deletions(root);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordDeletion inserts a deletion event into the database.
// A zero Timestamp is replaced with the current time.
func (d *DeletionDB) RecordDeletion(rec DeletionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Nodes == 0 {
		rec.Nodes = 1
	}

	query := `
	INSERT INTO deletions (
		timestamp, action, path, root, depth, nodes, elevated, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		rec.Timestamp,
		rec.Action,
		rec.Path,
		rec.Root,
		rec.Depth,
		rec.Nodes,
		rec.Elevated,
		rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("record %s for %s: %w", rec.Action, rec.Path, err)
	}
	return nil
}

// Ping verifies the database is reachable. Used by health checks.
func (d *DeletionDB) Ping() error {
	return d.db.Ping()
}

// Close closes the database connection
func (d *DeletionDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *DeletionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *DeletionDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	err := d.db.QueryRow("SELECT COUNT(*) FROM deletions").Scan(&totalRecords)
	if err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	// Database size
	var pageCount, pageSize int64
	err = d.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	if err != nil {
		return nil, err
	}
	err = d.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	if err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	// Date range
	var oldestDateStr, newestDateStr sql.NullString
	err = d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM deletions").Scan(&oldestDateStr, &newestDateStr)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseSQLiteTime(oldestDateStr); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseSQLiteTime(newestDateStr); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

// sqliteTimeLayouts are the forms go-sqlite3 uses when an aggregate returns a
// DATETIME column as text, e.g. "2025-11-19 23:01:56.489344855-05:00".
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
