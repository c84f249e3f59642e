package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"github.com/bashhack/lockrun/internal/errors"
)

func TestAcquire_HeldByOtherTable(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	holder, _, _ := newTestTable(t)
	waiter, _, _ := newTestTable(t)

	tok, err := holder.Acquire(context.Background(), resource, 0)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	_, err = waiter.Acquire(context.Background(), resource, 2)
	if !errors.Is(err, errors.ErrLockUnavailable) {
		t.Fatalf("Expected ErrLockUnavailable while lock is held, got %v", err)
	}
	if waiter.Len() != 0 {
		t.Errorf("Expected failed acquisition to record nothing, got %d entries", waiter.Len())
	}

	if err := holder.Release(tok); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	tok, err = waiter.Acquire(context.Background(), resource, 0)
	if err != nil {
		t.Fatalf("Expected lock to be free after release: %v", err)
	}
	if err := waiter.Release(tok); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
}

func TestAcquire_SucceedsOnceHolderReleases(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	holder, _, _ := newTestTable(t)
	metrics := NewMetrics(nil)
	waiter, stdout, _ := newTestTable(t, WithMetrics(metrics))

	held, err := holder.Acquire(context.Background(), resource, 0)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	type result struct {
		tok Token
		err error
	}
	done := make(chan result, 1)
	go func() {
		tok, err := waiter.Acquire(context.Background(), resource, Unbounded)
		done <- result{tok, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for testutil.ToFloat64(metrics.retries) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the waiter to hit the held lock")
		}
		time.Sleep(time.Millisecond)
	}

	if err := holder.Release(held); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Expected waiter to obtain the lock, got %v", res.err)
		}
		if !strings.Contains(stdout.String(), "Locked "+resource) {
			t.Errorf("Expected confirmation after contention, got %q", stdout.String())
		}
		if err := waiter.Release(res.tok); err != nil {
			t.Errorf("Failed to release lock: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the waiter to acquire the lock")
	}
}

func TestAcquire_WaitNoticeOnce(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	holder, _, _ := newTestTable(t)
	waiter, stdout, _ := newTestTable(t, WithWaitNoticeAfter(3))

	tok, err := holder.Acquire(context.Background(), resource, 0)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer func() { _ = holder.Release(tok) }()

	_, err = waiter.Acquire(context.Background(), resource, 8)
	if !errors.Is(err, errors.ErrLockUnavailable) {
		t.Fatalf("Expected ErrLockUnavailable, got %v", err)
	}

	notice := resource + LockSuffix + " already exists, waiting ..."
	if got := strings.Count(stdout.String(), notice); got != 1 {
		t.Errorf("Expected the waiting notice exactly once, got %d in %q", got, stdout.String())
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	holder, _, _ := newTestTable(t)
	waiter, _, _ := newTestTable(t)

	tok, err := holder.Acquire(context.Background(), resource, 0)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer func() { _ = holder.Release(tok) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = waiter.Acquire(ctx, resource, Unbounded)
	if !errors.Is(err, errors.ErrLockUnavailable) {
		t.Errorf("Expected ErrLockUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the context error to be wrapped, got %v", err)
	}
}

func TestAcquire_LockIOError(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "missing-dir", "results.txt")
	table, _, stderr := newTestTable(t)

	_, err := table.Acquire(context.Background(), resource, Unbounded)
	if !errors.Is(err, errors.ErrLockIO) {
		t.Fatalf("Expected ErrLockIO for an uncreatable lock file, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the underlying error to be wrapped, got %v", err)
	}
	if !strings.Contains(stderr.String(), "Cannot open lockfile") {
		t.Errorf("Expected I/O failure on stderr, got %q", stderr.String())
	}
	if table.Len() != 0 {
		t.Errorf("Expected nothing recorded, got %d entries", table.Len())
	}
}

func TestAcquire_MutualExclusion(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "shared.txt")

	const (
		workers    = 4
		iterations = 10
	)

	var inside, maxInside atomic.Int32
	var g errgroup.Group

	for w := 0; w < workers; w++ {
		// One table per goroutine, as separate processes would have.
		table, _, _ := newTestTable(t)
		g.Go(func() error {
			for i := 0; i < iterations; i++ {
				tok, err := table.Acquire(context.Background(), resource, Unbounded)
				if err != nil {
					return err
				}

				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				inside.Add(-1)

				if err := table.Release(tok); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("Worker failed: %v", err)
	}
	if got := maxInside.Load(); got != 1 {
		t.Errorf("Expected at most one holder at a time, observed %d", got)
	}
}

func TestOpenAndLock(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	table, _, _ := newTestTable(t)

	f, err := table.OpenAndLock(context.Background(), resource, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenAndLock failed: %v", err)
	}

	if _, err := os.Stat(resource + LockSuffix); err != nil {
		t.Errorf("Expected lock file while handle is open: %v", err)
	}
	if _, err := f.WriteString("M1234 no factor\n"); err != nil {
		t.Fatalf("Failed to write through handle: %v", err)
	}

	if err := table.UnlockAndClose(f); err != nil {
		t.Fatalf("UnlockAndClose failed: %v", err)
	}

	if _, err := os.Stat(resource + LockSuffix); !os.IsNotExist(err) {
		t.Errorf("Expected lock file to be removed, stat err: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Expected empty table, got %d entries", table.Len())
	}
	if _, err := f.WriteString("more"); err == nil {
		t.Error("Expected handle to be closed after UnlockAndClose")
	}

	data, err := os.ReadFile(resource)
	if err != nil {
		t.Fatalf("Failed to read resource: %v", err)
	}
	if string(data) != "M1234 no factor\n" {
		t.Errorf("Unexpected resource content %q", data)
	}
}

func TestOpenAndLock_OpenFailureReleasesLock(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "does-not-exist.txt")
	table, _, _ := newTestTable(t)

	f, err := table.OpenAndLock(context.Background(), resource, os.O_RDONLY, 0)
	if !errors.Is(err, errors.ErrOpenFailed) {
		t.Fatalf("Expected ErrOpenFailed, got %v", err)
	}
	if f != nil {
		t.Error("Expected no file on failure")
	}
	if table.Len() != 0 {
		t.Errorf("Expected the lock to be released, got %d entries", table.Len())
	}
	if _, err := os.Stat(resource + LockSuffix); !os.IsNotExist(err) {
		t.Errorf("Expected lock file to be removed, stat err: %v", err)
	}
}

func TestUnlockAndClose_UnknownFile(t *testing.T) {
	t.Parallel()

	table, _, stderr := newTestTable(t)

	tests := map[string]struct {
		file func(t *testing.T) *os.File
	}{
		"NilFile": {
			file: func(t *testing.T) *os.File { return nil },
		},
		"ForeignFile": {
			file: func(t *testing.T) *os.File {
				f, err := os.CreateTemp(t.TempDir(), "foreign")
				if err != nil {
					t.Fatalf("Failed to create file: %v", err)
				}
				return f
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := tc.file(t)

			err := table.UnlockAndClose(f)
			if !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}

			if f != nil {
				if err := f.Close(); err == nil {
					t.Error("Expected the foreign file to have been closed")
				}
			}
		})
	}

	if !strings.Contains(stderr.String(), "not found in locked files list") {
		t.Errorf("Expected not-found report on stderr, got %q", stderr.String())
	}
}

func TestRelease_HandleBoundLockWarns(t *testing.T) {
	t.Parallel()

	resource := filepath.Join(t.TempDir(), "results.txt")
	table, _, stderr := newTestTable(t)

	f, err := table.OpenAndLock(context.Background(), resource, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenAndLock failed: %v", err)
	}
	defer func() { _ = f.Close() }()

	tok, ok := table.Find(resource)
	if !ok {
		t.Fatal("Expected handle-bound lock to be findable")
	}

	if err := table.Release(tok); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "has an open file associated") {
		t.Errorf("Expected open-file warning on stderr, got %q", stderr.String())
	}
	if _, err := os.Stat(resource + LockSuffix); !os.IsNotExist(err) {
		t.Errorf("Expected lock file to be removed, stat err: %v", err)
	}

	// The handle belongs to the caller and is still usable.
	if _, err := f.WriteString("still open\n"); err != nil {
		t.Errorf("Expected handle to stay open, got %v", err)
	}
}

func TestReleaseAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	resource := filepath.Join(dir, "results.txt")
	table, _, _ := newTestTable(t)

	for _, name := range []string{"a", "b"} {
		if _, err := table.Acquire(context.Background(), filepath.Join(dir, name), 0); err != nil {
			t.Fatalf("Acquire(%s) failed: %v", name, err)
		}
	}
	f, err := table.OpenAndLock(context.Background(), resource, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenAndLock failed: %v", err)
	}

	if err := table.ReleaseAll(); err != nil {
		t.Fatalf("ReleaseAll failed: %v", err)
	}

	if table.Len() != 0 {
		t.Errorf("Expected empty table, got %d entries", table.Len())
	}
	if _, err := f.WriteString("x"); err == nil {
		t.Error("Expected handle-bound file to be closed")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), LockSuffix) {
			t.Errorf("Expected no lock files left, found %s", e.Name())
		}
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	table, _, _ := newTestTable(t)

	tests := map[string]struct {
		path string
		want bool
	}{
		"Present": {path: present, want: true},
		"Missing": {path: filepath.Join(dir, "missing.txt"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := table.FileExists(tc.path); got != tc.want {
				t.Errorf("FileExists(%q) = %t, want %t", tc.path, got, tc.want)
			}
		})
	}
}
