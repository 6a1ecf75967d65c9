package sessions

import (
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// FileLock is an advisory, on-disk lock guarding exclusive access to a
// session file, with stale-mtime reclaim so a crashed holder's lock file
// doesn't wedge the session forever.
type FileLock struct {
	path string
	lock *flock.Flock
}

// LockConfig configures stale detection and wait behavior for AcquireLock.
type LockConfig struct {
	// StaleAfter marks a lock file older than this as abandoned and eligible
	// for reclaim without waiting.
	StaleAfter time.Duration
	// WaitFor bounds how long to retry acquiring a non-stale, held lock
	// before giving up.
	WaitFor time.Duration
	// PollInterval is how often to retry while waiting.
	PollInterval time.Duration
}

// DefaultLockConfig mirrors the session_lock_stale_ms/session_lock_wait_ms
// defaults: a lock is considered abandoned after 30s, and a fresh contender
// waits up to 5s before failing.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		StaleAfter:   30 * time.Second,
		WaitFor:      5 * time.Second,
		PollInterval: 25 * time.Millisecond,
	}
}

// AcquireLock opens (creating if needed) "<sessionPath>.lock" and blocks
// until it is acquired, the wait budget is exhausted, or a stale lock is
// reclaimed. Per §4.1: a lock file newer than cfg.StaleAfter is live and
// must be waited on up to cfg.WaitFor; if it is older, it is presumed
// abandoned and reclaimed immediately (overwritten and proceeded).
func AcquireLock(sessionPath string, cfg LockConfig) (*FileLock, error) {
	lockPath := sessionPath + ".lock"
	fl := flock.New(lockPath)

	deadline := time.Now().Add(cfg.WaitFor)
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}
		if ok {
			return &FileLock{path: lockPath, lock: fl}, nil
		}

		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > cfg.StaleAfter {
				if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
					return nil, fmt.Errorf("reclaim stale lock %s: %w", lockPath, err)
				}
				continue
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out acquiring lock")
		}
		time.Sleep(cfg.PollInterval)
	}
}

// Release unlocks and removes the lock file.
func (l *FileLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	_ = os.Remove(l.path)
	return nil
}
