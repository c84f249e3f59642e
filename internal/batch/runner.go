package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"

	"github.com/bashhack/lockrun/internal/common"
	"github.com/bashhack/lockrun/internal/errors"
)

// Logger alias to common.Logger
type Logger = common.Logger

// Checkpointer tells the run loop whether to stop before the next unit.
// shutdown.Handler satisfies it.
type Checkpointer interface {
	Checkpoint() bool
}

// LockTable is the part of lockfile.Table the runner needs to append results.
type LockTable interface {
	OpenAndLock(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, error)
	UnlockAndClose(f *os.File) error
}

// Config contains configuration for a batch run
type Config struct {
	// ResultsPath is the shared file every unit appends its result line to
	ResultsPath string

	// Units is the number of units to run; 0 runs until stopped
	Units int

	// FirstUnit numbers the first unit of the run
	FirstUnit int

	// Verbose reports each finished unit to the user
	Verbose bool
}

// Runner executes work units one after another and appends each result to a
// results file that other processes may share.
type Runner struct {
	config     Config
	logger     Logger
	table      LockTable
	checkpoint Checkpointer
	worker     Worker
	clock      clock.Clock
	metrics    *Metrics

	unitsDone   int
	unitsFailed int
	startTime   time.Time
	stopped     bool
}

// NewRunner creates a runner with the wall clock and no metrics.
func NewRunner(config Config, logger Logger, table LockTable, checkpoint Checkpointer, worker Worker) *Runner {
	return NewRunnerWithDeps(config, logger, table, checkpoint, worker, clock.WallClock, nil)
}

// NewRunnerWithDeps creates a runner with custom dependencies
func NewRunnerWithDeps(
	config Config,
	logger Logger,
	table LockTable,
	checkpoint Checkpointer,
	worker Worker,
	clk clock.Clock,
	metrics *Metrics,
) *Runner {
	if config.FirstUnit <= 0 {
		config.FirstUnit = 1
	}
	return &Runner{
		config:     config,
		logger:     logger,
		table:      table,
		checkpoint: checkpoint,
		worker:     worker,
		clock:      clk,
		metrics:    metrics,
		startTime:  clk.Now(),
	}
}

// Run executes units until the configured count is reached, the checkpoint
// reports a stop request, or ctx is done. A failing unit is reported and
// skipped; failing to record a result ends the run.
func (r *Runner) Run(ctx context.Context) error {
	r.startTime = r.clock.Now()
	r.displayStartupInfo()

	for unit := r.config.FirstUnit; r.config.Units == 0 || unit < r.config.FirstUnit+r.config.Units; unit++ {
		if r.checkpoint.Checkpoint() {
			r.stopped = true
			r.logger.Info("Stop requested, leaving before unit %d", unit)
			return nil
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Received cancellation signal, shutting down...")
			return ctx.Err()
		default:
		}

		if err := r.runUnit(ctx, unit); err != nil {
			return err
		}
	}

	return nil
}

// runUnit computes one unit and records its result.
func (r *Runner) runUnit(ctx context.Context, unit int) error {
	start := r.clock.Now()

	line, err := r.worker.Run(ctx, unit)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.unitsFailed++
		r.metrics.unit(resultFailed, r.clock.Now().Sub(start))
		r.logger.Error("Unit %d failed: %v", unit, err)
		r.logger.WarningToUser("Unit %d failed, continuing with the next one.", unit)
		return nil
	}

	if err := r.appendResult(ctx, line); err != nil {
		r.logger.Error("Failed to record result of unit %d: %v", unit, err)
		return errors.Wrapf(err, "failed to record result of unit %d", unit)
	}

	r.unitsDone++
	r.metrics.unit(resultDone, r.clock.Now().Sub(start))
	r.logger.Info("Unit %d recorded: %s", unit, line)
	if r.config.Verbose {
		r.logger.Success("Unit %d done", unit)
	}

	return nil
}

// appendResult writes line to the results file while holding its lock.
func (r *Runner) appendResult(ctx context.Context, line string) error {
	f, err := r.table.OpenAndLock(ctx, r.config.ResultsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	_, werr := fmt.Fprintln(f, line)
	return errors.Join(werr, r.table.UnlockAndClose(f))
}

// UnitsDone returns the number of units whose result was recorded.
func (r *Runner) UnitsDone() int {
	return r.unitsDone
}

// UnitsFailed returns the number of units that failed.
func (r *Runner) UnitsFailed() int {
	return r.unitsFailed
}

// Stopped reports whether the last Run ended on a stop request.
func (r *Runner) Stopped() bool {
	return r.stopped
}

// displayStartupInfo outputs the active configuration to the user
func (r *Runner) displayStartupInfo() {
	r.logger.StatusMessage("🔄 lockrun started at %s", r.startTime.Format("2006-01-02 15:04:05"))
	r.logger.StatusMessage("📂 Results file: %s", r.config.ResultsPath)
	if r.config.Units > 0 {
		r.logger.StatusMessage("🔢 Units: %s (starting at %d)", humanize.Comma(int64(r.config.Units)), r.config.FirstUnit)
	} else {
		r.logger.StatusMessage("🔢 Units: until stopped (starting at %d)", r.config.FirstUnit)
	}
	r.logger.StatusMessage("❓ Press Ctrl+C to stop after the current unit")
}

// PrintSummary prints a summary of the batch session
func (r *Runner) PrintSummary() {
	duration := r.clock.Now().Sub(r.startTime)
	hours := int(duration.Hours())
	minutes := int(duration.Minutes()) % 60
	seconds := int(duration.Seconds()) % 60

	r.logger.StatusMessage("")
	r.logger.StatusMessage("---------------------------------------------")
	r.logger.StatusMessage("📊 lockrun Session Summary")
	r.logger.StatusMessage("---------------------------------------------")
	r.logger.StatusMessage("✅ Units completed: %s", humanize.Comma(int64(r.unitsDone)))
	if r.unitsFailed > 0 {
		r.logger.StatusMessage("⚠️  Units failed: %s", humanize.Comma(int64(r.unitsFailed)))
	}
	r.logger.StatusMessage("⏱️  Session duration: %dh %dm %ds", hours, minutes, seconds)

	if st, err := os.Stat(r.config.ResultsPath); err == nil {
		r.logger.StatusMessage("📝 Results file: %s (%s)", r.config.ResultsPath, humanize.Bytes(uint64(st.Size())))
	} else {
		r.logger.StatusMessage("📝 Results file: %s (not written)", r.config.ResultsPath)
	}

	if r.stopped {
		r.logger.StatusMessage("🛑 Stopped on request")
	}
	r.logger.StatusMessage("---------------------------------------------")
	r.logger.StatusMessage("🛑 lockrun terminated at %s", r.clock.Now().Format("2006-01-02 15:04:05"))
}
