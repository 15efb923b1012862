package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T, name string) *DeletionDB {
	t.Helper()
	db, err := NewDeletionDB(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := NewDeletionDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t, "wal.db")

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaCreation verifies all tables and indexes are created
func TestSchemaCreation(t *testing.T) {
	db := openTestDB(t, "schema.db")

	for _, table := range []string{"deletions", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}

	var version int
	if err := db.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Errorf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	for _, indexName := range []string{"idx_timestamp", "idx_action", "idx_path", "idx_root"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", indexName).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", indexName, err)
		}
	}
}

// TestRecordDeletion verifies basic insertion and read-back
func TestRecordDeletion(t *testing.T) {
	db := openTestDB(t, "record.db")

	ts := time.Now().Add(-time.Minute).Truncate(time.Second)
	rec := DeletionRecord{
		Timestamp: ts,
		Action:    ActionElevatedDelete,
		Path:      "/srv/data/old/empty",
		Root:      "/srv/data",
		Depth:     4,
		Nodes:     3,
		Elevated:  true,
	}
	if err := db.RecordDeletion(rec); err != nil {
		t.Fatalf("RecordDeletion failed: %v", err)
	}
	if err := db.RecordDeletion(DeletionRecord{
		Action:       ActionError,
		Path:         "/srv/data/locked",
		Root:         "/srv/data",
		ErrorMessage: "permission denied",
	}); err != nil {
		t.Fatalf("RecordDeletion failed: %v", err)
	}

	records, err := db.GetRecentDeletions(10)
	if err != nil {
		t.Fatalf("GetRecentDeletions failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	// Most recent first: the ERROR row used time.Now()
	errRec, delRec := records[0], records[1]
	if errRec.Action != ActionError || errRec.ErrorMessage != "permission denied" || errRec.Nodes != 1 {
		t.Errorf("Unexpected error record: %+v", errRec)
	}
	if delRec.Path != rec.Path || delRec.Root != rec.Root || delRec.Depth != 4 || delRec.Nodes != 3 || !delRec.Elevated {
		t.Errorf("Unexpected delete record: %+v", delRec)
	}
	if !delRec.Timestamp.Equal(ts) {
		t.Errorf("Timestamp mismatch: got %v, want %v", delRec.Timestamp, ts)
	}
}

func seed(t *testing.T, db *DeletionDB) {
	t.Helper()
	now := time.Now()
	rows := []DeletionRecord{
		{Timestamp: now.Add(-5 * time.Minute), Action: ActionDelete, Path: "/a/one", Root: "/a", Nodes: 1},
		{Timestamp: now.Add(-4 * time.Minute), Action: ActionDelete, Path: "/a/two", Root: "/a", Nodes: 4},
		{Timestamp: now.Add(-3 * time.Minute), Action: ActionElevatedDelete, Path: "/b/locked", Root: "/b", Nodes: 2, Elevated: true},
		{Timestamp: now.Add(-2 * time.Minute), Action: ActionError, Path: "/b/stuck", Root: "/b", ErrorMessage: "elevation failed"},
		{Timestamp: now.Add(-1 * time.Minute), Action: ActionSkip, Path: "/etc/empty", Root: "/etc", ErrorMessage: "protected path"},
		{Timestamp: now.Add(-40 * 24 * time.Hour), Action: ActionDryRun, Path: "/a/old", Root: "/a"},
	}
	for _, r := range rows {
		if err := db.RecordDeletion(r); err != nil {
			t.Fatalf("Failed to seed: %v", err)
		}
	}
}

// TestQueryMethods verifies the filtered queries
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t, "query.db")
	seed(t, db)

	t.Run("ByAction", func(t *testing.T) {
		records, err := db.GetDeletionsByAction(ActionDelete)
		if err != nil {
			t.Fatalf("GetDeletionsByAction failed: %v", err)
		}
		if len(records) != 2 || records[0].Path != "/a/two" {
			t.Errorf("Unexpected records: %+v", records)
		}
	})

	t.Run("ByRoot", func(t *testing.T) {
		records, err := db.GetDeletionsByRoot("/b")
		if err != nil {
			t.Fatalf("GetDeletionsByRoot failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records for /b, got %d", len(records))
		}
	})

	t.Run("ByPath", func(t *testing.T) {
		records, err := db.GetDeletionsByPath("/a/%")
		if err != nil {
			t.Fatalf("GetDeletionsByPath failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 records under /a, got %d", len(records))
		}
	})

	t.Run("ByDateRange", func(t *testing.T) {
		records, err := db.GetDeletionsByDateRange(time.Now().Add(-time.Hour), time.Now())
		if err != nil {
			t.Fatalf("GetDeletionsByDateRange failed: %v", err)
		}
		if len(records) != 5 {
			t.Errorf("Expected 5 records in the last hour, got %d", len(records))
		}
	})

	t.Run("Largest", func(t *testing.T) {
		records, err := db.GetLargestDeletions(1)
		if err != nil {
			t.Fatalf("GetLargestDeletions failed: %v", err)
		}
		if len(records) != 1 || records[0].Path != "/a/two" {
			t.Errorf("Unexpected largest deletion: %+v", records)
		}
	})

	t.Run("TopRoots", func(t *testing.T) {
		counts, err := db.GetTopRootsByDeletionCount(5)
		if err != nil {
			t.Fatalf("GetTopRootsByDeletionCount failed: %v", err)
		}
		if counts["/a"] != 2 || counts["/b"] != 1 {
			t.Errorf("Unexpected counts: %v", counts)
		}
	})
}

// TestPaginationMethods verifies limit/offset and totals
func TestPaginationMethods(t *testing.T) {
	db := openTestDB(t, "paginate.db")
	seed(t, db)

	page, total, err := db.GetRecentDeletionsPaginated(2, 0)
	if err != nil {
		t.Fatalf("GetRecentDeletionsPaginated failed: %v", err)
	}
	if total != 6 || len(page) != 2 || page[0].Path != "/etc/empty" {
		t.Errorf("Unexpected first page: total=%d page=%+v", total, page)
	}

	page, total, err = db.GetRecentDeletionsPaginated(2, 4)
	if err != nil {
		t.Fatalf("GetRecentDeletionsPaginated failed: %v", err)
	}
	if total != 6 || len(page) != 2 || page[1].Path != "/a/old" {
		t.Errorf("Unexpected last page: total=%d page=%+v", total, page)
	}

	page, total, err = db.GetDeletionsByActionPaginated(ActionDelete, 1, 1)
	if err != nil {
		t.Fatalf("GetDeletionsByActionPaginated failed: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].Path != "/a/one" {
		t.Errorf("Unexpected action page: total=%d page=%+v", total, page)
	}

	page, total, err = db.GetDeletionsByPathPaginated("/b/%", 10, 0)
	if err != nil {
		t.Fatalf("GetDeletionsByPathPaginated failed: %v", err)
	}
	if total != 2 || len(page) != 2 {
		t.Errorf("Unexpected path page: total=%d page=%+v", total, page)
	}
}

// TestConcurrentReadWrite verifies concurrent read and write operations
func TestConcurrentReadWrite(t *testing.T) {
	db := openTestDB(t, "concurrent.db")

	var wg sync.WaitGroup
	errors := make(chan error, 20)

	// Launch 1 writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			err := db.RecordDeletion(DeletionRecord{
				Action: ActionDelete,
				Path:   fmt.Sprintf("/test/empty%d", i),
				Root:   "/test",
			})
			if err != nil {
				errors <- fmt.Errorf("writer error: %v", err)
				return
			}
			time.Sleep(1 * time.Millisecond)
		}
	}()

	// Launch 5 concurrent readers
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := db.GetRecentDeletions(10); err != nil {
					errors <- fmt.Errorf("reader %d: %v", id, err)
					return
				}
				time.Sleep(2 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("Concurrent read/write error: %v", err)
	}
}

// TestDatabaseStats verifies statistics gathering
func TestDatabaseStats(t *testing.T) {
	db := openTestDB(t, "stats.db")
	seed(t, db)

	stats, err := db.GetDeletionStats(30)
	if err != nil {
		t.Fatalf("GetDeletionStats failed: %v", err)
	}
	if stats.TotalDeletions != 2 || stats.TotalElevated != 1 || stats.TotalErrors != 1 || stats.TotalSkipped != 1 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.TotalDryRun != 0 {
		t.Errorf("40-day-old dry run must be outside a 30-day window, got %d", stats.TotalDryRun)
	}
	if stats.DirectoriesRemoved != 7 {
		t.Errorf("Expected 7 directories removed, got %d", stats.DirectoriesRemoved)
	}
	if stats.ByAction[ActionDryRun] != 1 {
		t.Errorf("ByAction covers all time, got %v", stats.ByAction)
	}

	dbStats, err := db.GetDatabaseStats()
	if err != nil {
		t.Fatalf("GetDatabaseStats failed: %v", err)
	}
	if dbStats["total_records"] != int64(6) {
		t.Errorf("Unexpected total_records: %v", dbStats["total_records"])
	}
	if _, ok := dbStats["database_size_bytes"]; !ok {
		t.Error("Missing database_size_bytes")
	}
}

// TestDeleteOldRecordsAndVacuum verifies retention cleanup
func TestDeleteOldRecordsAndVacuum(t *testing.T) {
	db := openTestDB(t, "retention.db")
	seed(t, db)

	removed, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 old record removed, got %d", removed)
	}
	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

// TestDatabaseErrorHandling verifies failures surface as errors
func TestDatabaseErrorHandling(t *testing.T) {
	t.Run("InvalidPath", func(t *testing.T) {
		_, err := NewDeletionDB("/dev/null/invalid/path/db.sqlite")
		if err == nil {
			t.Error("Expected error for invalid database path")
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db, err := NewDeletionDB(filepath.Join(t.TempDir(), "closed.db"))
		if err != nil {
			t.Fatalf("Failed to create database: %v", err)
		}
		db.Close()
		if err := db.RecordDeletion(DeletionRecord{Action: ActionDelete, Path: "/x"}); err == nil {
			t.Error("Expected error writing to a closed database")
		}
	})
}
