package fsops

import (
	"errors"
	"io/fs"
	"os"
)

// OSDeleter implements Deleter using real os package calls
type OSDeleter struct{}

func (OSDeleter) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Exists uses Lstat so a dangling symlink still counts as present.
func (OSDeleter) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
