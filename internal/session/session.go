package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"emptyfolder-cleaner/internal/cleanup"
	"emptyfolder-cleaner/internal/disk"
	"emptyfolder-cleaner/internal/limiter"
	"emptyfolder-cleaner/internal/lock"
	"emptyfolder-cleaner/internal/safety"
	"emptyfolder-cleaner/internal/scan"
)

var (
	// ErrBusy is returned when a request would overlap a running scan or delete.
	ErrBusy = errors.New("another operation is in progress")
	// ErrNotFound is returned when a delete names a path that is not in the
	// current scan results.
	ErrNotFound = errors.New("path is not in the current scan results")
	// ErrClosed is returned once Run has stopped.
	ErrClosed = errors.New("session is closed")
	// ErrRootNotAllowed is returned for a scan root outside Config.AllowedRoots.
	ErrRootNotAllowed = errors.New("scan root is outside the configured scan paths")
	// ErrStaleMount is reported when the scan root does not answer a stat in time.
	ErrStaleMount = errors.New("scan root is on a stale network mount")
)

var errAlreadyRunning = errors.New("session is already running")

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Metrics receives scan outcomes. metrics.ScanRecorder satisfies it.
type Metrics interface {
	RecordScan(root string, directories, empty, roots int, duration time.Duration)
	RecordScanError()
	RecordStaleScan()
	RecordNFSStale(root string)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordScan(string, int, int, int, time.Duration) {}
func (nopMetrics) RecordScanError()                                {}
func (nopMetrics) RecordStaleScan()                                {}
func (nopMetrics) RecordNFSStale(string)                           {}

// State is what the presentation layer sees. Values handed out by the
// Session are deep copies.
type State struct {
	SelectedPath  string                    `json:"selected_path"`
	IsScanning    bool                      `json:"is_scanning"`
	IsDeleting    bool                      `json:"is_deleting"`
	LastError     string                    `json:"last_error,omitempty"`
	DeletionStats *cleanup.DeletionStats    `json:"deletion_stats,omitempty"`
	EmptyFolders  []scan.DirectoryHierarchy `json:"empty_folders"`
	ScanStats     *scan.Stats               `json:"scan_stats,omitempty"`
	// Generation increases with every scan started.
	Generation uint64 `json:"generation"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.DeletionStats != nil {
		ds := *s.DeletionStats
		out.DeletionStats = &ds
	}
	if s.ScanStats != nil {
		st := *s.ScanStats
		out.ScanStats = &st
	}
	if s.EmptyFolders != nil {
		out.EmptyFolders = make([]scan.DirectoryHierarchy, len(s.EmptyFolders))
		for i, h := range s.EmptyFolders {
			out.EmptyFolders[i] = h.Clone()
		}
	}
	return out
}

// Idle reports whether neither a scan nor a delete is running.
func (s State) Idle() bool {
	return !s.IsScanning && !s.IsDeleting
}

// Config controls a Session.
type Config struct {
	ScanOptions scan.Options
	// Limiter paces directory reads. Nil means unlimited.
	Limiter *limiter.DirLimiter
	// AllowedRoots restricts scan roots. Empty allows any root.
	AllowedRoots []string
	// ProtectedPaths are added to the validator built for every scan root.
	ProtectedPaths []string
	// NFSTimeout bounds the stale-mount probe of the scan root. Zero disables it.
	NFSTimeout time.Duration
	// LockFile guards delete batches across processes. Empty disables it.
	LockFile string
	Metrics  Metrics
}

// Session owns the scan state. A single control goroutine (Run) applies
// every mutation; scans and deletes run in background goroutines and hand
// their results back to it.
type Session struct {
	cfg     Config
	logger  Logger
	metrics Metrics
	cleaner *cleanup.Cleaner

	inbox   chan interface{}
	done    chan struct{}
	running atomic.Bool
	runCtx  context.Context
	workers sync.WaitGroup

	// state is touched only by the control goroutine.
	state   State
	current atomic.Pointer[State]

	subsMu sync.Mutex
	subs   map[chan State]struct{}
}

// New creates a Session. cleaner is copied per operation and scoped to the
// selected root, so its own validator is never used.
func New(cfg Config, cleaner *cleanup.Cleaner, logger Logger) *Session {
	if logger == nil {
		logger = nopLogger{}
	}
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	s := &Session{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cleaner: cleaner,
		inbox:   make(chan interface{}),
		done:    make(chan struct{}),
		subs:    make(map[chan State]struct{}),
	}
	s.publish()
	return s
}

// Run processes requests until ctx is cancelled, then waits for in-flight
// work to finish. Scans observe ctx; delete batches always run to completion.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	s.runCtx = ctx
	s.logger.Info("Session started")

	for {
		select {
		case msg := <-s.inbox:
			s.handle(msg)
		case <-ctx.Done():
			close(s.done)
			s.workers.Wait()
			s.logger.Info("Session stopped")
			return nil
		}
	}
}

type scanRequest struct {
	root  string
	reply chan error
}

type scanDone struct {
	gen     uint64
	root    string
	results []scan.DirectoryHierarchy
	stats   scan.Stats
	err     error
}

type deleteOneRequest struct {
	path           string
	allowElevation bool
	reply          chan error
}

type deleteAllRequest struct {
	askForElevation bool
	accepted        chan error
	reply           chan batchResult
}

type batchResult struct {
	report cleanup.Report
	err    error
}

type deleteDone struct {
	removed []string
	err     error
	// one is set for DeleteOne, batch for DeleteAll.
	one    chan error
	batch  chan batchResult
	report cleanup.Report
}

// Scan starts a background scan of root and returns once it is accepted.
// Results from any earlier scan are cleared immediately and a late result of
// an earlier scan is discarded.
func (s *Session) Scan(ctx context.Context, root string) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, scanRequest{root: root, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return err
	}
	return res
}

// DeleteOne deletes the hierarchy at path, which must be in the current
// results, and waits for the outcome. The error is the Deletion Engine's.
func (s *Session) DeleteOne(ctx context.Context, path string, allowElevation bool) error {
	reply := make(chan error, 1)
	req := deleteOneRequest{path: filepath.Clean(path), allowElevation: allowElevation, reply: reply}
	if err := s.send(ctx, req); err != nil {
		return err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return err
	}
	return res
}

// StartDeleteAll starts deleting every current result in the background.
// The outcome is published as DeletionStats and LastError.
func (s *Session) StartDeleteAll(ctx context.Context, askForElevation bool) error {
	return s.startDeleteAll(ctx, askForElevation, nil)
}

// DeleteAll deletes every current result and waits for the report.
func (s *Session) DeleteAll(ctx context.Context, askForElevation bool) (cleanup.Report, error) {
	reply := make(chan batchResult, 1)
	if err := s.startDeleteAll(ctx, askForElevation, reply); err != nil {
		return cleanup.Report{}, err
	}
	res, err := await(ctx, s, reply)
	if err != nil {
		return cleanup.Report{}, err
	}
	return res.report, res.err
}

func (s *Session) startDeleteAll(ctx context.Context, ask bool, reply chan batchResult) error {
	accepted := make(chan error, 1)
	if err := s.send(ctx, deleteAllRequest{askForElevation: ask, accepted: accepted, reply: reply}); err != nil {
		return err
	}
	res, err := await(ctx, s, accepted)
	if err != nil {
		return err
	}
	return res
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	p := s.current.Load()
	if p == nil {
		return State{}
	}
	return p.Clone()
}

// Subscribe returns a channel receiving a copy of the state after every
// change, starting with the current one. Slow readers only miss intermediate
// states, never the latest. cancel stops delivery and closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	offer(ch, s.Snapshot())
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

// AwaitIdle blocks until no scan or delete is running and returns that state.
func (s *Session) AwaitIdle(ctx context.Context) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()

	for {
		st := s.Snapshot()
		if st.Idle() {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-s.done:
			return s.Snapshot(), ErrClosed
		}
	}
}

func (s *Session) handle(msg interface{}) {
	switch m := msg.(type) {
	case scanRequest:
		m.reply <- s.startScan(m.root)
	case scanDone:
		s.finishScan(m)
	case deleteOneRequest:
		// On success the reply is sent by finishDelete.
		if err := s.startDeleteOne(m); err != nil {
			m.reply <- err
		}
	case deleteAllRequest:
		m.accepted <- s.startBatch(m)
	case deleteDone:
		s.finishDelete(m)
	default:
		s.logger.Error("Unknown session message", "type", fmt.Sprintf("%T", msg))
	}
}

func (s *Session) startScan(raw string) error {
	root, err := safety.NormalizePath(raw)
	if err != nil {
		return err
	}
	if len(s.cfg.AllowedRoots) > 0 && !safety.IsWithinAllowedRoots(root, s.cfg.AllowedRoots) {
		return fmt.Errorf("%w: %s", ErrRootNotAllowed, root)
	}
	if s.state.IsDeleting {
		return ErrBusy
	}

	s.state.Generation++
	gen := s.state.Generation
	s.state.SelectedPath = root
	s.state.IsScanning = true
	s.state.EmptyFolders = nil
	s.state.ScanStats = nil
	s.state.LastError = ""
	s.state.DeletionStats = nil
	s.publish()

	s.logger.Info("Starting scan", "root", root, "generation", gen)
	s.spawn(func() {
		s.deliver(s.runScan(gen, root))
	})
	return nil
}

func (s *Session) runScan(gen uint64, root string) scanDone {
	done := scanDone{gen: gen, root: root}

	if s.cfg.NFSTimeout > 0 && disk.IsNFSStale(root, s.cfg.NFSTimeout) {
		s.metrics.RecordNFSStale(root)
		done.err = fmt.Errorf("%w: %s", ErrStaleMount, root)
		return done
	}

	opts := s.cfg.ScanOptions
	if s.cfg.Limiter != nil {
		opts.Throttler = s.cfg.Limiter.WithContext(s.runCtx)
	}
	sc := scan.NewScanner(opts, s.logger)
	done.results, done.err = sc.Scan(s.runCtx, root)
	done.stats = sc.LastStats()
	return done
}

func (s *Session) finishScan(d scanDone) {
	if d.gen != s.state.Generation {
		s.logger.Debug("Discarding stale scan result", "root", d.root, "generation", d.gen, "current", s.state.Generation)
		s.metrics.RecordStaleScan()
		return
	}

	s.state.IsScanning = false
	if d.err != nil {
		s.logger.Warn("Scan failed", "root", d.root, "error", d.err)
		s.metrics.RecordScanError()
		s.state.LastError = d.err.Error()
		s.publish()
		return
	}

	s.state.EmptyFolders = d.results
	stats := d.stats
	s.state.ScanStats = &stats
	s.metrics.RecordScan(d.root, stats.Directories, stats.Empty, stats.Roots, stats.Duration)
	s.logger.Info("Scan complete", "root", d.root, "empty_roots", len(d.results), "directories", stats.Directories)
	s.publish()
}

func (s *Session) startDeleteOne(req deleteOneRequest) error {
	if !s.state.Idle() {
		return ErrBusy
	}
	h, ok := find(s.state.EmptyFolders, req.path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, req.path)
	}

	s.state.IsDeleting = true
	s.publish()

	cl := s.scopedCleaner()
	var removed []string
	cl.SetOnRemoved(func(p string) { removed = append(removed, p) })

	s.spawn(func() {
		err := cl.Delete(context.Background(), h, req.allowElevation)
		s.deliver(deleteDone{removed: removed, err: err, one: req.reply})
	})
	return nil
}

func (s *Session) startBatch(req deleteAllRequest) error {
	if !s.state.Idle() {
		return ErrBusy
	}

	hs := s.state.Clone().EmptyFolders
	if len(hs) == 0 {
		s.state.DeletionStats = &cleanup.DeletionStats{}
		s.state.LastError = ""
		s.publish()
		if req.reply != nil {
			req.reply <- batchResult{}
		}
		return nil
	}

	s.state.IsDeleting = true
	s.publish()

	cl := s.scopedCleaner()
	var removed []string
	cl.SetOnRemoved(func(p string) { removed = append(removed, p) })

	s.spawn(func() {
		lk, err := lock.Acquire(s.cfg.LockFile)
		if err != nil {
			s.deliver(deleteDone{err: err, batch: req.reply})
			return
		}
		defer lk.Release()

		rep := cl.DeleteAll(context.Background(), hs, req.askForElevation)
		s.deliver(deleteDone{removed: removed, report: rep, batch: req.reply})
	})
	return nil
}

func (s *Session) finishDelete(d deleteDone) {
	s.state.IsDeleting = false
	for _, p := range d.removed {
		s.state.EmptyFolders = scan.Prune(s.state.EmptyFolders, p)
	}

	switch {
	case d.one != nil:
		if d.err != nil {
			s.state.LastError = d.err.Error()
		}
		s.publish()
		d.one <- d.err
	default:
		if d.err != nil {
			s.logger.Error("Delete batch not started", "error", d.err)
			s.state.LastError = d.err.Error()
		} else {
			stats := d.report.DeletionStats
			s.state.DeletionStats = &stats
			s.state.LastError = d.report.Summary()
		}
		s.publish()
		if d.batch != nil {
			d.batch <- batchResult{report: d.report, err: d.err}
		}
	}
}

// scopedCleaner returns a cleaner that may only delete beneath the selected root.
func (s *Session) scopedCleaner() *cleanup.Cleaner {
	root := s.state.SelectedPath
	cl := s.cleaner.ForRoot(root)
	cl.SetValidator(safety.NewValidator([]string{root}, s.cfg.ProtectedPaths))
	return cl
}

func (s *Session) spawn(fn func()) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn()
	}()
}

// deliver hands a worker result to the control goroutine. After shutdown the
// result is dropped.
func (s *Session) deliver(msg interface{}) {
	select {
	case s.inbox <- msg:
	case <-s.done:
	}
}

// send blocks until the control goroutine takes msg.
func (s *Session) send(ctx context.Context, msg interface{}) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish stores a copy of the state for readers and notifies subscribers.
func (s *Session) publish() {
	snap := s.state.Clone()
	s.current.Store(&snap)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		offer(ch, snap.Clone())
	}
}

// offer replaces whatever is buffered in ch with st.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

func await[T any](ctx context.Context, s *Session, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-s.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}

func find(list []scan.DirectoryHierarchy, path string) (scan.DirectoryHierarchy, bool) {
	for _, h := range list {
		if n, ok := h.Find(path); ok {
			return n.Clone(), true
		}
	}
	return scan.DirectoryHierarchy{}, false
}
