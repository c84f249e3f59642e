// Package lockfile provides cross-process mutual exclusion through lock files.
//
// Locking a resource "results.txt" means atomically creating "results.txt.lck"
// with O_CREAT|O_EXCL. Whoever creates the file holds the lock; everyone else
// polls with a doubling backoff until the file disappears. No kernel advisory
// lock is involved, so the scheme works wherever exclusive creation is atomic.
//
// # Core Components
//
// - Table: the locks held by this process, bounded by MaxLocks
// - DirGuard: re-asserts the working directory before every lock operation
// - Token: handle for a lock taken with Acquire
// - Metrics: optional Prometheus collectors for table activity
// - Inspect / RemoveStale: diagnostics for lock files left behind by dead processes
//
// # Usage
//
// Token style, when the caller manages the resource itself:
//
//	table := lockfile.NewTable(lockfile.WithLogger(log))
//
//	tok, err := table.Acquire(ctx, "results.txt", 100)
//	if err != nil {
//	    // errors.ErrLockUnavailable after 100 retries
//	}
//	defer table.Release(tok)
//
// Handle-bound style, pairing the lock with an open file:
//
//	f, err := table.OpenAndLock(ctx, "results.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
//	if err != nil {
//	    return err
//	}
//	fmt.Fprintln(f, line)
//	return table.UnlockAndClose(f)
//
// # Lock Files
//
// A lock file holds the decimal PID of its creator on a single line. The table
// never reads it back; Inspect uses it to tell whether the holder still runs.
//
// # Backoff
//
// After each failed attempt the caller sleeps 30ms, doubling up to 1s. After
// 50 failed attempts a single "already exists, waiting ..." notice is printed,
// and a "Locked <path>" line confirms any acquisition that needed a retry.
//
// # Thread Safety
//
// A Table is not designed to be used concurrently by multiple goroutines.
// Independent tables, like independent processes, exclude each other through
// the lock files.
package lockfile
