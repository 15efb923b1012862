package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

// DefaultBundleExtensions are directory suffixes treated as opaque packages.
var DefaultBundleExtensions = []string{
	".app", ".bundle", ".framework", ".pkg", ".plugin",
	".kext", ".xcodeproj", ".xcworkspace", ".photoslibrary",
}

// Options controls a scan.
type Options struct {
	// IncludeHidden counts hidden entries as content. The deep policy is true.
	IncludeHidden bool
	// IncludeRoot allows the scan root itself to be reported when it is empty.
	IncludeRoot      bool
	BundleExtensions []string
	Throttler        Throttler
}

// DefaultOptions returns the deep policy with the default bundle list.
func DefaultOptions() Options {
	return Options{
		IncludeHidden:    true,
		BundleExtensions: DefaultBundleExtensions,
	}
}

// Stats describes one completed scan.
type Stats struct {
	Root        string        `json:"root"`
	Directories int           `json:"directories"`
	Empty       int           `json:"empty"`
	Roots       int           `json:"roots"`
	Bundles     int           `json:"bundles"`
	WalkErrors  int           `json:"walk_errors"`
	Duration    time.Duration `json:"duration_ns"`
}

var errNotDirectory = errors.New("scan root is not a directory")

// Scanner finds minimal empty directory roots beneath a path.
type Scanner struct {
	opts   Options
	logger Logger
	last   Stats
}

// NewScanner creates a new Scanner. A nil logger discards output.
func NewScanner(opts Options, logger Logger) *Scanner {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Scanner{opts: opts, logger: logger}
}

// LastStats returns statistics for the most recent Scan call.
func (s *Scanner) LastStats() Stats {
	return s.last
}

// Scan walks root and returns one hierarchy per minimal empty root, sorted by path.
//
// Only problems with root itself (or a cancelled context) are returned as errors.
// Unreadable entries below root are skipped and bias their parents toward "not empty".
func (s *Scanner) Scan(ctx context.Context, root string) ([]DirectoryHierarchy, error) {
	start := time.Now()
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, errNotDirectory)
	}

	stats := Stats{Root: root}
	s.logger.Info("Starting scan", "root", root, "include_hidden", s.opts.IncludeHidden)

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			stats.WalkErrors++
			s.logger.Debug("Skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && IsBundle(d.Name(), s.opts.BundleExtensions) {
			stats.Bundles++
			return filepath.SkipDir
		}
		if path == root && !s.opts.IncludeRoot {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan path %s: %w", root, err)
	}
	stats.Directories = len(dirs)

	// Deepest first so the evaluator's cache already holds every child result.
	sort.SliceStable(dirs, func(i, j int) bool {
		return PathDepth(dirs[i]) > PathDepth(dirs[j])
	})

	eval := NewEvaluator(s.opts.BundleExtensions, s.opts.Throttler)
	emptySet := make(map[string]struct{})
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan path %s: %w", root, err)
		}
		if eval.IsEmpty(dir, s.opts.IncludeHidden) {
			emptySet[dir] = struct{}{}
		}
	}
	stats.Empty = len(emptySet)

	roots := MinimalRoots(emptySet)
	result := make([]DirectoryHierarchy, 0, len(roots))
	for _, r := range roots {
		result = append(result, Build(r, emptySet))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	stats.Roots = len(result)
	stats.Duration = time.Since(start)
	s.last = stats

	s.logger.Info("Scan complete",
		"root", root,
		"directories", stats.Directories,
		"empty", stats.Empty,
		"empty_roots", stats.Roots,
		"duration", stats.Duration,
	)
	return result, nil
}

// MinimalRoots returns the topmost members of emptySet: a path is kept only when
// none of the already kept paths is its strict ancestor. Candidates are visited
// by depth, then path, so every ancestor is considered before its descendants.
func MinimalRoots(emptySet map[string]struct{}) []string {
	candidates := make([]string, 0, len(emptySet))
	for p := range emptySet {
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := PathDepth(candidates[i]), PathDepth(candidates[j])
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	kept := make(map[string]struct{})
	roots := make([]string, 0)
	for _, c := range candidates {
		if hasKeptAncestor(c, kept) {
			continue
		}
		kept[c] = struct{}{}
		roots = append(roots, c)
	}
	return roots
}

func hasKeptAncestor(path string, kept map[string]struct{}) bool {
	for parent := filepath.Dir(path); ; parent = filepath.Dir(parent) {
		if _, ok := kept[parent]; ok {
			return true
		}
		next := filepath.Dir(parent)
		if next == parent {
			return false
		}
	}
}
