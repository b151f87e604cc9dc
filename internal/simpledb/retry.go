package simpledb

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

const (
	flushRetries = 4
	flushBackoff = 50 * time.Millisecond
)

// flushWithRetry flushes e, retrying lock timeouts and transient IO errors
// with exponential backoff.
func flushWithRetry(ctx context.Context, e entry) error {
	return withRetry(ctx, e.flushPending)
}

// withRetry runs fn until it succeeds, fails permanently or the retries run
// out.
func withRetry(ctx context.Context, fn func() error) error {
	b := retry.WithMaxRetries(flushRetries, retry.NewExponential(flushBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn()
		if shouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// shouldRetry reports whether a failed flush may succeed on a later attempt.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, types.ErrLockTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, types.ErrInvalidDataRow) || errors.Is(err, types.ErrDatabaseClosed) {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR):
		return false
	}
	return errors.Is(err, types.ErrStorage)
}
