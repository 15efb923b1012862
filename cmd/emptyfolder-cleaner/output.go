package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/scan"
)

type scanOutput struct {
	Root         string                    `json:"root"`
	Stats        scan.Stats                `json:"stats"`
	EmptyFolders []scan.DirectoryHierarchy `json:"empty_folders"`
}

func printScan(w io.Writer, root string, hs []scan.DirectoryHierarchy, st scan.Stats, asJSON bool) error {
	if asJSON {
		if hs == nil {
			hs = []scan.DirectoryHierarchy{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(scanOutput{Root: root, Stats: st, EmptyFolders: hs})
	}

	if len(hs) == 0 {
		fmt.Fprintf(w, "No empty folders under %s\n", root)
		return nil
	}

	total := 0
	for _, h := range hs {
		printHierarchy(w, h, 0)
		total += h.Count()
	}
	fmt.Fprintf(w, "\n%d empty folder hierarchies (%d folders) under %s, %d directories checked in %s\n",
		len(hs), total, root, st.Directories, st.Duration.Round(time.Millisecond))
	return nil
}

func printHierarchy(w io.Writer, h scan.DirectoryHierarchy, level int) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", level), h.Path)
	for _, c := range h.Children {
		printHierarchy(w, c, level+1)
	}
}

func printReport(w io.Writer, r cleanup.Report, dryRun bool) {
	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	fmt.Fprintf(w, "%s %d folder hierarchies", verb, r.Deleted)
	if r.Elevated > 0 {
		fmt.Fprintf(w, " (%d with elevated privileges)", r.Elevated)
	}
	fmt.Fprintln(w)
	if msg := r.Summary(); msg != "" {
		fmt.Fprintln(w, msg)
	}
}
