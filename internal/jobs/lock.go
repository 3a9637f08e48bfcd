package jobs

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another caller holds a job's lock.
var ErrLocked = errors.New("job is locked")

// Lock is an advisory file lock held while a job is being processed. It
// excludes other goroutines and other processes sharing the upload
// directory.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file used for a job. The name does not start
// with the job ID so prefix-based cleanup never removes a held lock.
func LockPath(dir, id string) string {
	return filepath.Join(dir, ".lock-"+id)
}

// TryLock acquires the job lock without blocking, failing with ErrLocked
// when it is already held.
func TryLock(dir, id string) (*Lock, error) {
	fl := flock.New(LockPath(dir, id))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", id, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, id)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks the job. The lock file stays: removing it while another
// caller may have it open would let two callers lock different files under
// the same name.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.fl.Path(), err)
	}
	return nil
}
