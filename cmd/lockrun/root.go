package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bashhack/lockrun/internal/config"
	"github.com/bashhack/lockrun/internal/errors"
)

// newRootCommand builds the lockrun command tree around app.
func newRootCommand(app *App) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "lockrun",
		Short: "Run batch work units that share files guarded by lock files",
		Long: `lockrun runs a long batch of work units and appends every result to a
results file that several lockrun processes may share. Access is serialized
with <file>.lck lock files created atomically, so no advisory locking support
is needed from the filesystem.

Ctrl+C once to stop after the current unit, twice to stop immediately.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (YAML, TOML or JSON)")
	config.RegisterLockFlags(root.PersistentFlags())

	// load resolves the configuration of cmd and initializes app with it.
	load := func(cmd *cobra.Command) error {
		v, err := config.NewViper(cmd.Flags())
		if err != nil {
			return err
		}
		if err := config.ReadFile(v, configFile); err != nil {
			return err
		}

		cfg := config.Load(v)
		cfg.VersionInfo = app.Config.VersionInfo
		app.Config = cfg

		return app.Initialize()
	}

	root.AddCommand(
		newRunCommand(app, load),
		newSelfTestCommand(app, load),
		newHoldCommand(app, load),
		newStatusCommand(app, load),
		newVersionCommand(app),
	)

	return root
}

func newRunCommand(app *App, load func(*cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command [args...]]",
		Short: "Run work units and append their results to the shared results file",
		Long: `Run work units one after another. With a command after --, the command is
run once per unit with LOCKRUN_UNIT set and its output becomes the result line.
Without one, a built-in checksum workload is used.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			app.Command = args
			if err := load(cmd); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, app.Close()) }()

			return app.RunBatch(cmd.Context())
		},
	}
	config.RegisterRunFlags(cmd.Flags())
	return cmd
}

func newSelfTestCommand(app *App, load func(*cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Check the lock protocol in a scratch directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := load(cmd); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, app.Close()) }()

			return app.SelfTest(cmd.Context())
		},
	}
}

func newHoldCommand(app *App, load func(*cobra.Command) error) *cobra.Command {
	var holdFor time.Duration

	cmd := &cobra.Command{
		Use:   "hold <file>",
		Short: "Lock a file and keep the lock until stopped",
		Long: `Lock a file the same way run locks the results file and keep the lock for
--for, or until Ctrl+C when --for is 0. Useful to pause other lockrun
processes or to observe contention.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := load(cmd); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, app.Close()) }()

			return app.Hold(cmd.Context(), args[0], app.Config.Retries, holdFor)
		},
	}
	config.RegisterHoldFlags(cmd.Flags())
	cmd.Flags().DurationVar(&holdFor, "for", 0, "How long to hold the lock (0: until stopped)")
	return cmd
}

func newStatusCommand(app *App, load func(*cobra.Command) error) *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "status <file>",
		Short: "Show who holds the lock on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := load(cmd); err != nil {
				return err
			}
			defer func() { err = errors.Join(err, app.Close()) }()

			return app.Status(cmd.Context(), args[0], clean)
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the lock file if its holder is no longer running")
	return cmd
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			app.ShowVersion()
		},
	}
}
