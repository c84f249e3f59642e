package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bashhack/lockrun/internal/common"
	"github.com/bashhack/lockrun/internal/errors"
	"github.com/bashhack/lockrun/internal/lockfile"
)

// selfTest is one check of the lock protocol. newTable returns a fresh,
// independent table standing in for another process.
type selfTest struct {
	name string
	run  func(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error
}

var selfTests = []selfTest{
	{name: "token round trip", run: testTokenRoundTrip},
	{name: "exclusion between tables", run: testExclusion},
	{name: "handle-bound append", run: testHandleBound},
	{name: "name length limit", run: testNameTooLong},
	{name: "table capacity", run: testCapacity},
}

// SelfTest checks the lock protocol in a scratch directory before a run.
// NewTable must return independent tables sharing the run's settings.
type SelfTest struct {
	Dir        string
	Logger     Logger
	Checkpoint Checkpointer
	NewTable   func(...lockfile.Option) *lockfile.Table
}

// Run executes every check and returns how many passed. It stops at the first
// failure or when the checkpoint asks to stop.
func (s *SelfTest) Run(ctx context.Context) (int, error) {
	dir, err := os.MkdirTemp(s.Dir, "lockrun-selftest-*")
	if err != nil {
		return 0, errors.Wrap(err, "failed to create self-test directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.Logger.Warning("Failed to remove self-test directory %s: %v", dir, err)
		}
	}()

	passed := 0
	for i, test := range selfTests {
		if s.Checkpoint != nil && s.Checkpoint.Checkpoint() {
			return passed, nil
		}
		if err := ctx.Err(); err != nil {
			return passed, err
		}

		if err := test.run(ctx, dir, s.NewTable); err != nil {
			s.Logger.Error("Self-test %d/%d (%s) failed: %v", i+1, len(selfTests), test.name, err)
			return passed, errors.Wrapf(err, "self-test %q failed", test.name)
		}

		passed++
		s.Logger.Info("Self-test %d/%d (%s) passed", i+1, len(selfTests), test.name)
	}

	s.Logger.Success("Self-test passed (%d checks)", passed)
	return passed, nil
}

func testTokenRoundTrip(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error {
	table := newTable()
	resource := filepath.Join(dir, "roundtrip")

	tok, err := table.Acquire(ctx, resource, 0)
	if err != nil {
		return err
	}
	if _, err := os.Stat(tok.Path()); err != nil {
		return errors.Wrap(err, "lock file missing while held")
	}
	if err := table.Release(tok); err != nil {
		return err
	}
	if _, err := os.Stat(tok.Path()); !os.IsNotExist(err) {
		return errors.Errorf("lock file %s left behind after release", tok.Path())
	}
	if table.Len() != 0 {
		return errors.Errorf("table still holds %d locks", table.Len())
	}
	return nil
}

func testExclusion(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error {
	holder, other := newTable(), newTable()
	resource := filepath.Join(dir, "shared")

	tok, err := holder.Acquire(ctx, resource, 0)
	if err != nil {
		return err
	}
	defer func() { _ = holder.Release(tok) }()

	if _, err := other.Acquire(ctx, resource, 0); !errors.Is(err, errors.ErrLockUnavailable) {
		return errors.Errorf("second table was not excluded: %v", err)
	}
	return nil
}

func testHandleBound(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error {
	table := newTable()
	resource := filepath.Join(dir, "results")

	f, err := table.OpenAndLock(ctx, resource, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString("selftest\n"); err != nil {
		_ = table.UnlockAndClose(f)
		return err
	}
	if err := table.UnlockAndClose(f); err != nil {
		return err
	}

	data, err := os.ReadFile(resource)
	if err != nil {
		return err
	}
	if string(data) != "selftest\n" {
		return errors.Errorf("unexpected content %q", data)
	}
	return nil
}

func testNameTooLong(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error {
	table := newTable(lockfile.WithLogger(common.NopLogger{}))
	name := filepath.Join(dir, strings.Repeat("n", lockfile.MaxNameLength))

	if _, err := table.Acquire(ctx, name, 0); !errors.Is(err, errors.ErrNameTooLong) {
		return errors.Errorf("expected %v, got %v", errors.ErrNameTooLong, err)
	}
	return nil
}

func testCapacity(ctx context.Context, dir string, newTable func(...lockfile.Option) *lockfile.Table) error {
	table := newTable(lockfile.WithCapacity(2), lockfile.WithLogger(common.NopLogger{}))
	defer func() { _ = table.ReleaseAll() }()

	for _, name := range []string{"first", "second"} {
		if _, err := table.Acquire(ctx, filepath.Join(dir, name), 0); err != nil {
			return err
		}
	}
	if _, err := table.Acquire(ctx, filepath.Join(dir, "third"), 0); !errors.Is(err, errors.ErrTableFull) {
		return errors.Errorf("expected %v, got %v", errors.ErrTableFull, err)
	}
	return nil
}
