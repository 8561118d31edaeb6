package monitor

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another monitor run holds the lock.
var ErrLocked = errors.New("another monitor run is in progress")

// Lock guards a monitored output directory against concurrent runs.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock file without blocking. Uses gofrs/flock for
// cross-platform compatibility (Unix + Windows).
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring monitor lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
