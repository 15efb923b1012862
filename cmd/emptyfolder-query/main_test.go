package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"emptyfolder-cleaner/internal/database"
)

func seededDB(t *testing.T) *database.DeletionDB {
	t.Helper()
	db, err := database.NewDeletionDB(filepath.Join(t.TempDir(), "q.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	recs := []database.DeletionRecord{
		{Action: database.ActionDelete, Path: "/srv/a", Root: "/srv", Depth: 2, Nodes: 3},
		{Action: database.ActionError, Path: "/srv/b", Root: "/srv", Depth: 2, ErrorMessage: "permission denied"},
	}
	for _, r := range recs {
		if err := db.RecordDeletion(r); err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestRecordsTable(t *testing.T) {
	db := seededDB(t)
	var out bytes.Buffer
	q := query{db: db, out: &out}

	if err := q.records("Deletions under root: /srv", func() ([]database.DeletionRecord, error) {
		return db.GetDeletionsByRoot("/srv")
	}); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	for _, want := range []string{"Deletions under root: /srv", "/srv/a", "/srv/b (permission denied)", "ERROR"} {
		if !strings.Contains(s, want) {
			t.Errorf("Output missing %q:\n%s", want, s)
		}
	}
}

func TestRecordsJSON(t *testing.T) {
	db := seededDB(t)
	var out bytes.Buffer
	q := query{db: db, out: &out, json: true}

	if err := q.records("", func() ([]database.DeletionRecord, error) { return db.GetRecentDeletions(10) }); err != nil {
		t.Fatal(err)
	}

	var got []database.DeletionRecord
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("Not JSON: %v\n%s", err, out.String())
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 records, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	db := seededDB(t)
	var out bytes.Buffer
	q := query{db: db, out: &out}

	if err := q.stats(7); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Errors:              1") {
		t.Errorf("Unexpected stats output:\n%s", out.String())
	}
}

func TestEmptyRecords(t *testing.T) {
	var out bytes.Buffer
	printRecords(&out, nil)
	if !strings.Contains(out.String(), "No records found") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}
