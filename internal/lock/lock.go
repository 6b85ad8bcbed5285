// Package lock keeps a single crewgen writer per project directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/brightfame/crewgen/internal/constants"
)

// ErrLocked is returned when another live run holds the project lock.
var ErrLocked = errors.New("project is locked by another run")

// Lock represents a held run lock.
type Lock struct {
	PID        int
	AcquiredAt time.Time
	path       string
}

// Acquire creates <dir>/.crewgen/run.lock. A lock older than maxAge, held by
// a process that no longer exists, or that cannot be parsed is treated as
// stale and replaced.
func Acquire(dir string, maxAge time.Duration) (*Lock, error) {
	path := filepath.Join(dir, constants.RunLockFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("lock: failed to create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		l := &Lock{PID: os.Getpid(), AcquiredAt: time.Now().UTC().Truncate(time.Second), path: path}
		err := writeExclusive(path, l.String())
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock: failed to write lock file: %w", err)
		}

		held, err := Read(dir)
		if err == nil && time.Since(held.AcquiredAt) <= maxAge && processAlive(held.PID) {
			return nil, fmt.Errorf("%w: pid %d since %s", ErrLocked, held.PID, held.AcquiredAt.Format(time.RFC3339))
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("lock: failed to remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: lock file keeps reappearing", ErrLocked)
}

func writeExclusive(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Release removes the lock file, verifying this process still owns it.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("lock: failed to read lock file: %w", err)
	}

	expectedPrefix := fmt.Sprintf("pid-%d ", l.PID)
	if !strings.HasPrefix(string(data), expectedPrefix) {
		return fmt.Errorf("lock: lock is not owned by pid %d", l.PID)
	}

	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("lock: failed to remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) String() string {
	return fmt.Sprintf("pid-%d %s", l.PID, l.AcquiredAt.Format(time.RFC3339))
}

// Read parses the lock file of dir.
func Read(dir string) (Lock, error) {
	path := filepath.Join(dir, constants.RunLockFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Lock{}, fmt.Errorf("lock: failed to read lock file: %w", err)
	}
	l, err := parseLock(string(data))
	if err != nil {
		return Lock{}, err
	}
	l.path = path
	return l, nil
}

// parseLock parses "pid-<n> <RFC3339>".
func parseLock(content string) (Lock, error) {
	parts := strings.SplitN(strings.TrimSpace(content), " ", 2)
	if len(parts) != 2 {
		return Lock{}, fmt.Errorf("lock: malformed lock file")
	}

	pid, err := strconv.Atoi(strings.TrimPrefix(parts[0], "pid-"))
	if err != nil {
		return Lock{}, fmt.Errorf("lock: invalid pid: %w", err)
	}

	acquiredAt, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return Lock{}, fmt.Errorf("lock: invalid timestamp: %w", err)
	}

	return Lock{PID: pid, AcquiredAt: acquiredAt}, nil
}

// processAlive checks if a process with the given PID exists.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Signal 0 checks existence.
	return proc.Signal(syscall.Signal(0)) == nil
}
