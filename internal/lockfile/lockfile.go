package lockfile

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/juju/retry"

	"github.com/bashhack/lockrun/internal/errors"
)

// unlimitedAttempts tells retry.Call to keep going until success or Stop.
const unlimitedAttempts = -1

// acquire creates the lock file for path and records it in the table.
// retries < 0 retries forever; otherwise at most retries+1 attempts are made.
func (t *Table) acquire(ctx context.Context, path string, retries int, style string) (*entry, error) {
	lockPath := path + LockSuffix

	if len(path) > MaxNameLength {
		t.logger.Error("Cannot lock %.250s: Name too long.", path)
		t.metrics.failed(reasonNameTooLong)
		return nil, errors.NewLockError(fmt.Sprintf("%.250s", path), 0, errors.ErrNameTooLong)
	}

	if len(t.entries) >= t.capacity {
		t.logger.Error("Cannot lock %s: Too many locked files.", path)
		t.metrics.failed(reasonTableFull)
		return nil, errors.NewLockError(lockPath, 0, errors.ErrTableFull)
	}

	t.guard.Ensure()

	attempts := retries + 1
	if retries < 0 || retries == math.MaxInt {
		attempts = unlimitedAttempts
	}

	var (
		lockFile *os.File
		tries    int
		fatal    error
	)

	start := t.clock.Now()
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			tries++
			f, err := t.create(lockPath)
			if err != nil {
				if !os.IsExist(err) {
					fatal = err
				}
				return err
			}
			lockFile = f
			return nil
		},
		IsFatalError: func(err error) bool {
			return !os.IsExist(err)
		},
		NotifyFunc: func(_ error, attempt int) {
			t.metrics.contended()
			if attempt == t.waitNoticeAfter {
				t.logger.StatusMessage("%s already exists, waiting ...", lockPath)
			}
		},
		Attempts:    attempts,
		Delay:       t.backoffInitial,
		MaxDelay:    t.backoffMax,
		BackoffFunc: retry.DoubleDelay,
		Clock:       t.clock,
		Stop:        ctx.Done(),
	})

	if lockFile == nil {
		switch {
		case fatal != nil:
			t.logger.Error("Cannot open lockfile %s: %v", lockPath, fatal)
			t.metrics.failed(reasonIO)
			return nil, errors.NewLockError(lockPath, 0, errors.Errorf("%w: %w", errors.ErrLockIO, fatal))
		case ctx.Err() != nil:
			t.metrics.failed(reasonUnavailable)
			return nil, errors.NewLockError(lockPath, 0, errors.Errorf("%w: %w", errors.ErrLockUnavailable, ctx.Err()))
		case err != nil && !retry.IsAttemptsExceeded(err):
			t.metrics.failed(reasonIO)
			return nil, errors.NewLockError(lockPath, 0, errors.Errorf("%w: %w", errors.ErrLockIO, err))
		default:
			t.metrics.failed(reasonUnavailable)
			return nil, errors.NewLockError(lockPath, 0, errors.ErrLockUnavailable)
		}
	}

	if tries > 1 {
		t.logger.StatusMessage("Locked %s", path)
	}

	// The PID is for whoever inspects a stuck lock; nothing reads it back.
	_, _ = fmt.Fprintf(lockFile, "%d\n", t.pid)

	e := &entry{lockFile: lockFile, lockPath: lockPath}
	t.record(e)
	t.metrics.acquired(style, t.clock.Now().Sub(start), len(t.entries))
	t.logger.Info("Acquired %s after %d attempt(s)", lockPath, tries)

	return e, nil
}

// Acquire locks the resource at path, retrying up to retries times (Unbounded
// for no limit) while another holder owns the lock file. Retrying stops early
// when ctx is done.
//
// On failure nothing is recorded: the error wraps ErrNameTooLong, ErrTableFull,
// ErrLockUnavailable or ErrLockIO.
func (t *Table) Acquire(ctx context.Context, path string, retries int) (Token, error) {
	e, err := t.acquire(ctx, path, retries, styleToken)
	if err != nil {
		return Token{}, err
	}
	return Token{id: e.id, path: e.lockPath, owner: t}, nil
}

// Release unlocks the lock identified by tok and deletes its lock file.
func (t *Table) Release(tok Token) error {
	t.guard.Ensure()

	idx := -1
	if tok.owner == t {
		idx = t.indexOf(tok.id)
	}
	if idx < 0 {
		t.logger.Error("Lockfile %s not found in locked files list.", tok.path)
		return errors.NewLockError(tok.path, 0, errors.ErrNotFound)
	}

	if t.entries[idx].file != nil {
		t.logger.Warning("Lockfile %s has an open file associated.", tok.path)
	}

	t.release(idx)
	return nil
}

// OpenAndLock waits for the lock on path without a retry limit, then opens the
// resource with flag and perm. If the open fails the lock is released before the
// error (wrapping ErrOpenFailed) is returned.
//
// The returned file must be closed with UnlockAndClose.
func (t *Table) OpenAndLock(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, error) {
	e, err := t.acquire(ctx, path, Unbounded, styleHandle)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		lockPath := e.lockPath
		t.release(t.indexOf(e.id))
		t.metrics.failed(reasonOpen)
		return nil, errors.NewLockError(lockPath, 0, errors.Errorf("%w: %w", errors.ErrOpenFailed, err))
	}

	e.file = f
	return f, nil
}

// UnlockAndClose releases the lock paired with f by OpenAndLock and closes f,
// returning the result of the close. A file the table does not know is still
// closed, and ErrNotFound is returned alongside any close error.
func (t *Table) UnlockAndClose(f *os.File) error {
	if f == nil {
		return errors.NewLockError("", 0, errors.ErrNotFound)
	}

	t.guard.Ensure()

	idx := t.indexOfFile(f)
	if idx < 0 {
		t.logger.Error("File %s not found in locked files list.", f.Name())
		return errors.Join(errors.NewLockError(f.Name()+LockSuffix, 0, errors.ErrNotFound), f.Close())
	}

	t.release(idx)
	return f.Close()
}

// ReleaseAll releases every held lock, newest first, closing files opened by
// OpenAndLock. It returns the joined close errors of those files.
func (t *Table) ReleaseAll() error {
	t.guard.Ensure()

	var errs []error
	for i := len(t.entries) - 1; i >= 0; i-- {
		f := t.entries[i].file
		t.release(i)
		if f != nil {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// FileExists reports whether path can be opened for reading, resolved against
// the guarded working directory.
func (t *Table) FileExists(path string) bool {
	t.guard.Ensure()

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
