package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"emptyfolder-cleaner/internal/database"
	"emptyfolder-cleaner/internal/exitcodes"
)

func main() {
	// Parse command-line flags
	dbPath := flag.String("db", "/var/lib/emptyfolder-cleaner/deletions.db", "Path to deletion database")
	recent := flag.Int("recent", 0, "Show N most recent deletions")
	stats := flag.Bool("stats", false, "Show deletion statistics")
	action := flag.String("action", "", "Filter by action (DELETE, ELEVATED_DELETE, DRY_RUN, SKIP, ERROR)")
	root := flag.String("root", "", "Filter by scan root")
	pathPattern := flag.String("path", "", "Filter by path pattern (SQL LIKE syntax)")
	days := flag.Int("days", 30, "Number of days for statistics")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	db, err := database.NewDeletionDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	q := query{db: db, out: os.Stdout, json: *jsonOutput}

	switch {
	case *stats:
		err = q.stats(*days)
	case *recent > 0:
		err = q.records("", func() ([]database.DeletionRecord, error) { return db.GetRecentDeletions(*recent) })
	case *action != "":
		err = q.records("Records with action: "+*action, func() ([]database.DeletionRecord, error) { return db.GetDeletionsByAction(*action) })
	case *root != "":
		err = q.records("Deletions under root: "+*root, func() ([]database.DeletionRecord, error) { return db.GetDeletionsByRoot(*root) })
	case *pathPattern != "":
		err = q.records("Deletions matching path pattern: "+*pathPattern, func() ([]database.DeletionRecord, error) { return db.GetDeletionsByPath(*pathPattern) })
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  emptyfolder-query --recent 10             # Show 10 most recent deletions")
		fmt.Println("  emptyfolder-query --stats                 # Show deletion statistics")
		fmt.Println("  emptyfolder-query --action ERROR          # Show only failures")
		fmt.Println("  emptyfolder-query --root /srv/share       # Show deletions under a scan root")
		fmt.Println("  emptyfolder-query --path '/srv/share/%'   # Show deletions by path pattern")
		os.Exit(exitcodes.InvalidConfig)
	}
	if err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}
}

type query struct {
	db   *database.DeletionDB
	out  io.Writer
	json bool
}

func (q query) stats(days int) error {
	stats, err := q.db.GetDeletionStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}
	if q.json {
		return q.writeJSON(stats)
	}

	fmt.Fprintf(q.out, "Deletion Statistics (Last %d days)\n", days)
	fmt.Fprintf(q.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(q.out, "Deleted:             %d\n", stats.TotalDeletions)
	fmt.Fprintf(q.out, "Deleted (elevated):  %d\n", stats.TotalElevated)
	fmt.Fprintf(q.out, "Dry run:             %d\n", stats.TotalDryRun)
	fmt.Fprintf(q.out, "Skipped:             %d\n", stats.TotalSkipped)
	fmt.Fprintf(q.out, "Errors:              %d\n", stats.TotalErrors)
	fmt.Fprintf(q.out, "Folders removed:     %d\n\n", stats.DirectoriesRemoved)

	if len(stats.ByRoot) > 0 {
		fmt.Fprintln(q.out, "By Root:")
		for root, count := range stats.ByRoot {
			fmt.Fprintf(q.out, "  %-30s %d\n", root, count)
		}
		fmt.Fprintln(q.out)
	}

	if len(stats.ByAction) > 0 {
		fmt.Fprintln(q.out, "By Action:")
		for action, count := range stats.ByAction {
			fmt.Fprintf(q.out, "  %-15s %d\n", action, count)
		}
	}
	return nil
}

func (q query) records(title string, fetch func() ([]database.DeletionRecord, error)) error {
	records, err := fetch()
	if err != nil {
		return err
	}
	if q.json {
		return q.writeJSON(records)
	}
	if title != "" {
		fmt.Fprintf(q.out, "%s\n\n", title)
	}
	printRecords(q.out, records)
	return nil
}

func (q query) writeJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(q.out, string(data))
	return err
}

func printRecords(out io.Writer, records []database.DeletionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tFolders\tElevated\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t-------\t--------\t----")

	for _, r := range records {
		path := r.Path
		if r.ErrorMessage != "" {
			path += " (" + r.ErrorMessage + ")"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.Nodes, r.Elevated, path)
	}
	_ = w.Flush()
}
