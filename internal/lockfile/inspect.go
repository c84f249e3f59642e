package lockfile

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/bashhack/lockrun/internal/errors"
)

// Info describes a lock file as seen from outside the table that created it.
type Info struct {
	LockPath string
	PID      int
	ModTime  time.Time
	Alive    bool
}

// Stale reports whether the holder recorded in the lock file is gone.
// A lock whose PID could not be read is never considered stale.
func (i Info) Stale() bool {
	return i.PID > 0 && !i.Alive
}

// Inspect reads the lock file of the resource at path. It is a diagnostic aid
// and plays no part in acquisition. The error wraps ErrNotFound when no lock
// file exists.
func Inspect(ctx context.Context, path string) (Info, error) {
	lockPath := path + LockSuffix
	info := Info{LockPath: lockPath}

	st, err := os.Stat(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return info, errors.NewLockError(lockPath, 0, errors.ErrNotFound)
		}
		return info, errors.NewLockError(lockPath, 0, errors.Wrap(err, "failed to stat lock file"))
	}
	info.ModTime = st.ModTime()

	pid, err := readLockPID(lockPath)
	if err != nil {
		// The holder may not have written its PID yet.
		return info, nil
	}
	info.PID = pid

	alive, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return info, errors.NewLockError(lockPath, pid, errors.Wrap(err, "failed to check lock holder"))
	}
	info.Alive = alive

	return info, nil
}

// RemoveStale deletes the lock file of the resource at path when its recorded
// holder no longer runs. It reports whether a file was removed.
func RemoveStale(ctx context.Context, path string) (bool, error) {
	info, err := Inspect(ctx, path)
	if err != nil {
		return false, err
	}
	if !info.Stale() {
		return false, nil
	}

	// Someone may have replaced the stale lock since we looked.
	if pid, err := readLockPID(info.LockPath); err != nil || pid != info.PID {
		return false, nil
	}

	if err := os.Remove(info.LockPath); err != nil && !os.IsNotExist(err) {
		return false, errors.NewLockError(info.LockPath, info.PID,
			errors.Wrapf(err, "found stale lock file from PID %d, but failed to remove it", info.PID))
	}
	return true, nil
}

func readLockPID(lockPath string) (int, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read lock file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrap(err, "invalid PID in lock file")
	}
	if pid <= 0 {
		return 0, errors.Errorf("invalid PID in lock file: %d", pid)
	}

	return pid, nil
}
