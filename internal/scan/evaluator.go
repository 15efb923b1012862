package scan

import (
	"os"
	"path/filepath"
)

// Throttler paces directory reads. limiter.DirLimiter implements it.
type Throttler interface {
	Throttle()
}

type evalKey struct {
	path          string
	includeHidden bool
}

// Evaluator decides whether a directory is empty. It memoizes per path, so one
// Evaluator should not outlive a single scan.
type Evaluator struct {
	bundleExts []string
	throttler  Throttler
	cache      map[evalKey]bool
	reads      int
}

// NewEvaluator creates an Evaluator. throttler may be nil.
func NewEvaluator(bundleExts []string, throttler Throttler) *Evaluator {
	return &Evaluator{
		bundleExts: bundleExts,
		throttler:  throttler,
		cache:      make(map[evalKey]bool),
	}
}

// IsEmpty reports whether path contains no files anywhere beneath it.
//
// With includeHidden=false, hidden entries are ignored; with includeHidden=true
// they count as content. Any non-directory entry, bundle, or unreadable entry
// makes the directory non-empty. Read failures never surface: the directory is
// simply reported as not empty.
func (e *Evaluator) IsEmpty(path string, includeHidden bool) bool {
	key := evalKey{path: path, includeHidden: includeHidden}
	if v, ok := e.cache[key]; ok {
		return v
	}
	v := e.evaluate(path, includeHidden)
	e.cache[key] = v
	return v
}

func (e *Evaluator) evaluate(path string, includeHidden bool) bool {
	if IsBundle(filepath.Base(path), e.bundleExts) {
		return false
	}

	if e.throttler != nil {
		e.throttler.Throttle()
	}
	e.reads++

	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		if !includeHidden && IsHidden(child, entry) {
			continue
		}
		// Symlinks, sockets and devices are content, even when they point at a directory.
		if !entry.IsDir() {
			return false
		}
		if !e.IsEmpty(child, includeHidden) {
			return false
		}
	}
	return true
}

// Reads returns how many directory listings the evaluator performed.
func (e *Evaluator) Reads() int {
	return e.reads
}
