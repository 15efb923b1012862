package fsops

import "context"

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove dry-run never deletes
type Deleter interface {
	RemoveAll(path string) error
	Exists(path string) (bool, error)
}

// Elevator performs a privileged recursive delete. It is the capability used
// after an ordinary delete fails with a permission error.
type Elevator interface {
	RemoveAll(ctx context.Context, path string) error
}
