package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the batch lock.
var ErrLocked = errors.New("another cleanup batch is already running")

// BatchLock serializes delete batches across processes sharing a lock file.
type BatchLock struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock at path without blocking. An empty path
// disables locking and returns a nil lock, whose Release is a no-op.
func Acquire(path string) (*BatchLock, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
	}
	return &BatchLock{fl: fl}, nil
}

// Release unlocks. The lock file itself is left in place.
func (l *BatchLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
