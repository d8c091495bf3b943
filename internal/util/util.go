package util

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// RunDir holds the per-target runtime files (lock, manifests).
func RunDir(stateDir, target string) string {
	return filepath.Join(stateDir, "run", target)
}

func LogDir(stateDir, target string) string {
	return filepath.Join(stateDir, "logs", target)
}

func LockPath(stateDir, target string) string {
	return filepath.Join(RunDir(stateDir, target), "hlb.lock")
}

// LogFile is the daily JSON log of a target.
func LogFile(stateDir, target string, now time.Time) string {
	return filepath.Join(LogDir(stateDir, target), now.Format("2006-01-02")+".log")
}

func ManifestPath(stateDir, target string) string {
	return filepath.Join(RunDir(stateDir, target), "catalog_manifest.yaml")
}

// RefPath records the last manifest push of a target.
func RefPath(stateDir, target string) string {
	return filepath.Join(RunDir(stateDir, target), "last_push.yaml")
}

func SetupDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}
