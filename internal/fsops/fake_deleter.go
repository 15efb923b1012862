package fsops

import (
	"context"
	"strings"
	"sync"
)

// FakeDeleter implements Deleter for testing
// Records all delete calls without performing actual deletions
type FakeDeleter struct {
	mu    sync.Mutex
	Calls []string
	// Errors maps a path to the error RemoveAll returns for it.
	Errors map[string]error
	// Existing holds the paths Exists reports as present. A successful
	// RemoveAll drops the path and everything beneath it.
	Existing map[string]bool
}

// NewFakeDeleter returns a FakeDeleter where every given path exists.
func NewFakeDeleter(existing ...string) *FakeDeleter {
	f := &FakeDeleter{
		Errors:   make(map[string]error),
		Existing: make(map[string]bool),
	}
	for _, p := range existing {
		f.Existing[p] = true
	}
	return f
}

func (f *FakeDeleter) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "rmall:"+path)
	if err, ok := f.Errors[path]; ok && err != nil {
		return err
	}
	f.forget(path)
	return nil
}

func (f *FakeDeleter) Exists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Existing[path], nil
}

// SetError makes RemoveAll(path) fail with err. A nil err clears it.
func (f *FakeDeleter) SetError(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = make(map[string]error)
	}
	if err == nil {
		delete(f.Errors, path)
		return
	}
	f.Errors[path] = err
}

// CallCount returns the number of RemoveAll calls recorded so far.
func (f *FakeDeleter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeDeleter) forget(path string) {
	for p := range f.Existing {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(f.Existing, p)
		}
	}
}

// FakeElevator implements Elevator for testing. When Deleter is set, a
// successful elevated delete removes the path from the deleter's Existing set,
// so existence checks after elevation behave like the real filesystem.
type FakeElevator struct {
	mu      sync.Mutex
	Calls   []string
	Errors  map[string]error
	Deleter *FakeDeleter
	// LeaveBehind lists paths that report success but still exist afterwards.
	LeaveBehind map[string]bool
}

func (e *FakeElevator) RemoveAll(ctx context.Context, path string) error {
	e.mu.Lock()
	e.Calls = append(e.Calls, "elevate:"+path)
	err := e.Errors[path]
	leave := e.LeaveBehind[path]
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if e.Deleter != nil && !leave {
		e.Deleter.mu.Lock()
		e.Deleter.forget(path)
		e.Deleter.mu.Unlock()
	}
	return nil
}

// CallCount returns the number of elevated deletes requested.
func (e *FakeElevator) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
