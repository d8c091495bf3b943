package logging

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// dailyFile appends to the file named for the current day and reopens when
// the name changes.
type dailyFile struct {
	name func(day time.Time) string
	now  func() time.Time

	mu   sync.Mutex
	path string
	file *os.File
}

func newDailyFile(name func(time.Time) string, now func() time.Time) *dailyFile {
	return &dailyFile{name: name, now: now}
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.name(d.now())
	if path != d.path || d.file == nil {
		if err := d.open(path); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

func (d *dailyFile) open(path string) error {
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return errors.Wrapf(err, "failed to close log file %s", d.path)
		}
		d.file = nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.Wrap(err, "failed to open log file")
	}
	d.path, d.file = path, f
	return nil
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
