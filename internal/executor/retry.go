package executor

import (
	"context"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	retryAttempts = 5
	retryBase     = 100 * time.Millisecond
)

// retry runs fn with exponential backoff while it fails with a transient
// filesystem error.
func retry(ctx context.Context, opName string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return errors.Wrapf(err, "%s failed", opName)
		}
		if attempt == retryAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBase * (1 << (attempt - 1))):
		}
	}

	return errors.Wrapf(lastErr, "%s failed after %d attempts", opName, retryAttempts)
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT)
}
