package disk

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// IsNFSStale checks if a path is on a stale NFS mount by attempting a quick stat
// with timeout. Returns true if the operation times out or fails with NFS-specific errors.
// A scan of a stale mount would hang in ReadDir, so callers check the root first.
func IsNFSStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)

	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		return isStaleError(err)
	case <-time.After(timeout):
		// Operation timed out - likely stale NFS
		return true
	}
}

// Common NFS errors: EIO, ESTALE, ENXIO
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	return os.IsTimeout(err) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.ESTALE) ||
		errors.Is(err, syscall.ENXIO)
}
