package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bashhack/lockrun/internal/errors"
)

// EnvPrefix prefixes every environment variable lockrun reads.
const EnvPrefix = "LOCKRUN"

// Configuration keys. Each one is also a flag name and, upper-cased with
// dashes turned into underscores and EnvPrefix prepended, an environment
// variable (LOCKRUN_MAX_LOCKS).
const (
	KeyResults         = "results"
	KeyUnits           = "units"
	KeyFirstUnit       = "first-unit"
	KeyChecksumRounds  = "checksum-rounds"
	KeySelfTest        = "selftest"
	KeyRetries         = "retries"
	KeyMaxLocks        = "max-locks"
	KeyBackoffInitial  = "backoff-initial"
	KeyBackoffMax      = "backoff-max"
	KeyWaitNoticeAfter = "wait-notice-after"
	KeyVerbose         = "verbose"
	KeyQuiet           = "quiet"
	KeyDebug           = "debug"
	KeyLogFile         = "log-file"
	KeyMetricsTextfile = "metrics-textfile"
)

// NewViper returns a viper instance that resolves keys from flags in fs, then
// LOCKRUN_* environment variables, then an optional config file, then the
// defaults of New.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := New()
	v.SetDefault(KeyResults, d.ResultsPath)
	v.SetDefault(KeyUnits, d.Units)
	v.SetDefault(KeyFirstUnit, d.FirstUnit)
	v.SetDefault(KeyChecksumRounds, d.ChecksumRounds)
	v.SetDefault(KeySelfTest, d.SelfTest)
	v.SetDefault(KeyRetries, d.Retries)
	v.SetDefault(KeyMaxLocks, d.MaxLocks)
	v.SetDefault(KeyBackoffInitial, d.BackoffInitial)
	v.SetDefault(KeyBackoffMax, d.BackoffMax)
	v.SetDefault(KeyWaitNoticeAfter, d.WaitNoticeAfter)
	v.SetDefault(KeyVerbose, d.Verbose)
	v.SetDefault(KeyQuiet, d.Quiet)
	v.SetDefault(KeyDebug, d.Debug)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyMetricsTextfile, d.MetricsTextfile)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, errors.NewConfigError("flags", nil, errors.Wrap(errors.ErrInvalidConfiguration, err.Error()))
		}
	}

	return v, nil
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.NewConfigError("config", path, errors.Wrap(errors.ErrInvalidConfiguration, err.Error()))
	}
	return nil
}

// Load builds a Config from v. The result still needs Finalize.
func Load(v *viper.Viper) *Config {
	c := New()

	c.ResultsPath = v.GetString(KeyResults)
	c.Units = v.GetInt(KeyUnits)
	c.FirstUnit = v.GetInt(KeyFirstUnit)
	c.ChecksumRounds = v.GetInt(KeyChecksumRounds)
	c.SelfTest = v.GetBool(KeySelfTest)
	c.Retries = v.GetInt(KeyRetries)
	c.MaxLocks = v.GetInt(KeyMaxLocks)
	c.BackoffInitial = v.GetDuration(KeyBackoffInitial)
	c.BackoffMax = v.GetDuration(KeyBackoffMax)
	c.WaitNoticeAfter = v.GetInt(KeyWaitNoticeAfter)
	c.Verbose = v.GetBool(KeyVerbose)
	c.Quiet = v.GetBool(KeyQuiet)
	c.Debug = v.GetBool(KeyDebug)
	c.LogFile = v.GetString(KeyLogFile)
	c.MetricsTextfile = v.GetString(KeyMetricsTextfile)

	return c
}

// RegisterLockFlags adds the lock protocol and logging flags to fs.
func RegisterLockFlags(fs *pflag.FlagSet) {
	d := New()
	fs.Int(KeyMaxLocks, d.MaxLocks, "Maximum number of locks held at once")
	fs.Duration(KeyBackoffInitial, d.BackoffInitial, "First sleep after finding a lock taken")
	fs.Duration(KeyBackoffMax, d.BackoffMax, "Upper bound of the doubling backoff")
	fs.Int(KeyWaitNoticeAfter, d.WaitNoticeAfter, "Failed attempts before printing a waiting notice")
	fs.Bool(KeyQuiet, d.Quiet, "Hide informational messages")
	fs.Bool(KeyDebug, d.Debug, "Enable debug logging")
	fs.String(KeyLogFile, d.LogFile, "Path to log file (default: ~/.local/share/lockrun/logs/lockrun-{results-hash}.log)")
}

// RegisterRunFlags adds the batch run flags to fs.
func RegisterRunFlags(fs *pflag.FlagSet) {
	d := New()
	fs.String(KeyResults, d.ResultsPath, "Shared results file every unit appends to")
	fs.Int(KeyUnits, d.Units, "Number of units to run (0: until stopped)")
	fs.Int(KeyFirstUnit, d.FirstUnit, "Number of the first unit")
	fs.Int(KeyChecksumRounds, d.ChecksumRounds, "SHA-256 rounds per unit of the built-in workload (0: default)")
	fs.Bool(KeySelfTest, d.SelfTest, "Run the lock self-test before the first unit")
	fs.Bool(KeyVerbose, d.Verbose, "Report every finished unit")
	fs.String(KeyMetricsTextfile, d.MetricsTextfile, "Write Prometheus metrics to this file on exit")
}

// RegisterHoldFlags adds the flags of the hold command to fs.
func RegisterHoldFlags(fs *pflag.FlagSet) {
	fs.Int(KeyRetries, DefaultHoldRetries, "Retries while the lock is taken (negative: unbounded)")
}
