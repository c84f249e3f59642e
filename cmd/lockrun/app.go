package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bashhack/lockrun/internal/batch"
	"github.com/bashhack/lockrun/internal/common"
	"github.com/bashhack/lockrun/internal/config"
	"github.com/bashhack/lockrun/internal/errors"
	"github.com/bashhack/lockrun/internal/lockfile"
	"github.com/bashhack/lockrun/internal/logger"
	"github.com/bashhack/lockrun/internal/shutdown"
)

// Runner performs the batch run
type Runner interface {
	PrintSummary()
	Run(ctx context.Context) error
}

// SignalHandler converts signals into stop requests
type SignalHandler interface {
	RegisterGraceful(state *shutdown.State)
	RegisterImmediate(state *shutdown.State)
	Checkpoint() bool
	Stop()
}

// Logger alias to common.Logger
type Logger = common.Logger

// AppOptions contains app configuration and dependencies
type AppOptions struct {
	// Required
	Config *config.Config

	// Optional components
	Logger  Logger
	Table   *lockfile.Table
	Handler SignalHandler
	Runner  Runner
	Worker  batch.Worker

	// I/O dependencies
	Stdout io.Writer
	Stderr io.Writer

	// System dependencies
	Exit func(code int)
}

// App is the main lockrun application
type App struct {
	Config  *config.Config
	Logger  Logger
	Table   *lockfile.Table
	Handler SignalHandler
	Runner  Runner
	Worker  batch.Worker

	// Command is the external program run per unit; empty selects the
	// built-in workload
	Command []string

	// I/O streams
	Stdout io.Writer
	Stderr io.Writer

	state        *shutdown.State
	registry     *prometheus.Registry
	lockMetrics  *lockfile.Metrics
	batchMetrics *batch.Metrics

	// System dependencies
	exit func(code int)
}

// NewDefaultApp creates an App with standard dependencies
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	cfg := config.New()
	cfg.VersionInfo = versionInfo

	return NewApp(AppOptions{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Exit:   os.Exit,
	})
}

// NewApp creates an App with custom dependencies
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:  opts.Config,
		Logger:  opts.Logger,
		Table:   opts.Table,
		Handler: opts.Handler,
		Runner:  opts.Runner,
		Worker:  opts.Worker,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		exit:    opts.Exit,
	}

	// Set defaults for nil dependencies
	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.exit == nil {
		app.exit = os.Exit
	}

	return app
}

// Initialize sets up components not provided during construction
func (a *App) Initialize() error {
	if err := a.Config.Finalize(); err != nil {
		if errors.Is(err, errors.ErrInvalidConfiguration) {
			return err
		}
		return errors.Wrap(errors.ErrInvalidConfiguration, err.Error())
	}

	if a.Logger == nil {
		a.Logger = logger.NewWithOutput(a.Config.Debug, a.Config.LogFile, a.Config.Quiet, a.Stdout, a.Stderr)
	}

	a.registry = prometheus.NewRegistry()
	a.lockMetrics = lockfile.NewMetrics(a.registry)
	a.batchMetrics = batch.NewMetrics(a.registry)

	if a.Table == nil {
		a.Table = a.newTable()
	}

	a.state = shutdown.NewState(shutdown.ModeNormal)
	if a.Handler == nil {
		a.Handler = shutdown.NewHandler(shutdown.WithLogger(a.Logger), shutdown.WithExit(a.exit))
	}

	if a.Worker == nil {
		if len(a.Command) > 0 {
			a.Worker = batch.NewCommandWorker(a.Command)
		} else {
			a.Worker = &batch.ChecksumWorker{Rounds: a.Config.ChecksumRounds}
		}
	}

	if a.Runner == nil {
		a.Runner = batch.NewRunnerWithDeps(batch.Config{
			ResultsPath: a.Config.ResultsPath,
			Units:       a.Config.Units,
			FirstUnit:   a.Config.FirstUnit,
			Verbose:     a.Config.Verbose,
		}, a.Logger, a.Table, a.Handler, a.Worker, clock.WallClock, a.batchMetrics)
	}

	a.Logger.Info("lockrun %s initialized (results %s)", a.Config.VersionInfo.Version, a.Config.ResultsPath)
	return nil
}

// newTable creates a lock table with the configured protocol settings. The
// self-test uses it to stand in for independent processes.
func (a *App) newTable(opts ...lockfile.Option) *lockfile.Table {
	base := []lockfile.Option{
		lockfile.WithCapacity(a.Config.MaxLocks),
		lockfile.WithLogger(a.Logger),
		lockfile.WithBackoff(a.Config.BackoffInitial, a.Config.BackoffMax),
		lockfile.WithWaitNoticeAfter(a.Config.WaitNoticeAfter),
		lockfile.WithMetrics(a.lockMetrics),
	}
	return lockfile.NewTable(append(base, opts...)...)
}

// RunBatch runs the optional self-test under the immediate handler, then the
// batch under the graceful one.
func (a *App) RunBatch(ctx context.Context) error {
	if a.Config.SelfTest {
		if err := a.SelfTest(ctx); err != nil {
			return err
		}
	}

	a.state.SetMode(shutdown.ModeNormal)
	a.Handler.RegisterGraceful(a.state)

	err := a.Runner.Run(ctx)
	a.Runner.PrintSummary()
	return err
}

// SelfTest checks the lock protocol. Any signal during it ends the process.
func (a *App) SelfTest(ctx context.Context) error {
	a.state.SetMode(shutdown.ModeSelfTest)
	a.Handler.RegisterImmediate(a.state)

	st := &batch.SelfTest{
		Dir:        "",
		Logger:     a.Logger,
		Checkpoint: a.Handler,
		NewTable:   a.newTable,
	}
	_, err := st.Run(ctx)
	return err
}

// Hold locks resource until d elapses (0: until stopped) or a stop request
// arrives, then releases it.
func (a *App) Hold(ctx context.Context, resource string, retries int, d time.Duration) error {
	a.Handler.RegisterGraceful(a.state)

	tok, err := a.Table.Acquire(ctx, resource, retries)
	if err != nil {
		return err
	}
	a.Logger.Success("Holding %s (PID %d)", tok.Path(), os.Getpid())

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-timeout:
	case <-a.state.Stopping():
		a.Handler.Checkpoint()
	case <-ctx.Done():
	}

	if err := a.Table.Release(tok); err != nil {
		return err
	}
	a.Logger.InfoToUser("Released %s", tok.Path())
	return nil
}

// Status reports the lock on resource and, with clean, removes it when its
// holder is gone.
func (a *App) Status(ctx context.Context, resource string, clean bool) error {
	info, err := lockfile.Inspect(ctx, resource)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			_, _ = fmt.Fprintf(a.Stdout, "🔓 %s is not locked\n", resource)
			return nil
		}
		return err
	}

	age := humanize.Time(info.ModTime)
	switch {
	case info.PID == 0:
		_, _ = fmt.Fprintf(a.Stdout, "🔒 %s locked %s, holder unknown\n", info.LockPath, age)
	case info.Alive:
		_, _ = fmt.Fprintf(a.Stdout, "🔒 %s locked %s by running PID %d\n", info.LockPath, age, info.PID)
	default:
		_, _ = fmt.Fprintf(a.Stdout, "⚠️  %s locked %s by PID %d, which is no longer running\n", info.LockPath, age, info.PID)
	}

	if !clean || !info.Stale() {
		return nil
	}

	removed, err := lockfile.RemoveStale(ctx, resource)
	if err != nil {
		return err
	}
	if removed {
		_, _ = fmt.Fprintf(a.Stdout, "🧹 Removed stale lock %s\n", info.LockPath)
	}
	return nil
}

// ShowVersion displays version information
func (a *App) ShowVersion() {
	_, _ = fmt.Fprintf(a.Stdout, "lockrun %s (%s) built on %s\n",
		a.Config.VersionInfo.Version,
		a.Config.VersionInfo.Commit,
		a.Config.VersionInfo.Date)
}

// writeMetrics exports the registry to the configured textfile, if any.
func (a *App) writeMetrics() error {
	if a.Config.MetricsTextfile == "" || a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.Config.MetricsTextfile, a.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", a.Config.MetricsTextfile)
	}
	return nil
}

// Close releases resources held by the App
func (a *App) Close() error {
	var errs []error

	if a.Handler != nil {
		a.Handler.Stop()
	}

	if a.Table != nil {
		if held := a.Table.Held(); len(held) > 0 && a.Logger != nil {
			a.Logger.Info("Releasing %d lock(s) left held: %v", len(held), held)
		}
		if err := a.Table.ReleaseAll(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.writeMetrics(); err != nil {
		errs = append(errs, err)
	}

	if l, ok := a.Logger.(interface{ Close() error }); ok {
		if err := l.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
