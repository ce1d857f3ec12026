package tsmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another tsmd holds the lock.
var ErrAlreadyRunning = errors.New("another tsmd instance is already running")

// Lock is a single-instance lock file.
type Lock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes tsmd.lock inside dir without blocking.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, "tsmd.lock")
	l := &Lock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the file.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}
