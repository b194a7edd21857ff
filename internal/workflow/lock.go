package workflow

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another batch command holds the run lock.
var ErrRunInProgress = errors.New("another mecadoi batch run is in progress")

// RunLock serializes batch commands that share a data directory.
type RunLock struct {
	path string
	lock *flock.Flock
}

// AcquireRunLock takes the lock at path without blocking.
func AcquireRunLock(path string) (*RunLock, error) {
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrRunInProgress, path)
	}
	return &RunLock{path: path, lock: l}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// Release unlocks the run lock. It is safe to call on a nil lock.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
