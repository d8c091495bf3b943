// Package lock keeps two hlb processes on this machine from mutating the
// same target at once.
package lock

import (
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Entry struct {
	Pid       int    `yaml:"pid"`
	Target    string `yaml:"target"`
	Command   string `yaml:"command"`
	StartedAt string `yaml:"started_at"`
}

func readLock(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrapf(err, "parsing lock file %s", path)
	}
	return &entry, nil
}

func writeLock(path string, entry *Entry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	// EPERM: the process exists but belongs to someone else
	return true
}

// Acquire takes the lock at lockPath for target. A lock left by a dead
// process is reclaimed. The returned release function should be deferred.
func Acquire(lockPath, target, command string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create run directory")
	}

	existing, err := readLock(lockPath)
	if err != nil {
		return nil, err
	}

	if existing != nil && isProcessAlive(existing.Pid) {
		err := errors.Newf("target %s is already locked by pid %d (%s, started %s)",
			target, existing.Pid, existing.Command, existing.StartedAt)
		return nil, errors.WithHintf(err, "wait for it to finish, or remove %s if that process is not hlb", lockPath)
	}

	entry := &Entry{
		Pid:       os.Getpid(),
		Target:    target,
		Command:   command,
		StartedAt: time.Now().Format(time.RFC3339),
	}
	if err := writeLock(lockPath, entry); err != nil {
		return nil, errors.Wrap(err, "failed to write lock file")
	}

	release := func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	return release, nil
}
