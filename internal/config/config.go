package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bashhack/lockrun/internal/errors"
	"github.com/bashhack/lockrun/internal/lockfile"
)

const (
	// DefaultResultsPath is the shared file work units append to
	DefaultResultsPath = "results.txt"

	// DefaultHoldRetries is how often `lockrun hold` retries a taken lock
	DefaultHoldRetries = lockfile.Unbounded
)

// Config holds all lockrun application settings
type Config struct {
	// Batch run
	ResultsPath    string
	Units          int
	FirstUnit      int
	ChecksumRounds int
	SelfTest       bool

	// Lock protocol
	Retries         int
	MaxLocks        int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	WaitNoticeAfter int

	// User experience
	Verbose bool
	Quiet   bool

	// Debugging and observability
	Debug           bool
	LogFile         string
	MetricsTextfile string

	// Build metadata
	VersionInfo VersionInfo
}

// VersionInfo contains build-time version metadata
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		ResultsPath:     DefaultResultsPath,
		Units:           0,
		FirstUnit:       1,
		ChecksumRounds:  0,
		SelfTest:        true,
		Retries:         DefaultHoldRetries,
		MaxLocks:        lockfile.MaxLocks,
		BackoffInitial:  lockfile.DefaultBackoffInitial,
		BackoffMax:      lockfile.DefaultBackoffMax,
		WaitNoticeAfter: lockfile.DefaultWaitNoticeAfter,
		Verbose:         false,
		Quiet:           false,
		Debug:           false,
		LogFile:         "",

		// Default version info, will be overridden if provided
		VersionInfo: VersionInfo{
			Version: "dev",
			Commit:  "unknown",
			Date:    "unknown",
		},
	}
}

// Finalize validates and finalizes the configuration
func (c *Config) Finalize() error {
	if c.Units < 0 {
		return invalid(KeyUnits, c.Units, "must not be negative")
	}
	if c.FirstUnit < 1 {
		return invalid(KeyFirstUnit, c.FirstUnit, "must be at least 1")
	}
	if c.ChecksumRounds < 0 {
		return invalid(KeyChecksumRounds, c.ChecksumRounds, "must not be negative")
	}
	if c.MaxLocks < 1 {
		return invalid(KeyMaxLocks, c.MaxLocks, "must be at least 1")
	}
	if c.BackoffInitial <= 0 {
		return invalid(KeyBackoffInitial, c.BackoffInitial, "must be positive")
	}
	if c.BackoffMax < c.BackoffInitial {
		return invalid(KeyBackoffMax, c.BackoffMax, fmt.Sprintf("must not be below %s (%s)", KeyBackoffInitial, c.BackoffInitial))
	}
	if c.WaitNoticeAfter < 1 {
		return invalid(KeyWaitNoticeAfter, c.WaitNoticeAfter, "must be at least 1")
	}
	if c.Retries < 0 {
		c.Retries = lockfile.Unbounded
	}

	if c.ResultsPath == "" {
		return invalid(KeyResults, "", "must not be empty")
	}
	absResults, err := filepath.Abs(c.ResultsPath)
	if err != nil {
		return errors.NewConfigError(KeyResults, c.ResultsPath, errors.Wrap(errors.ErrInvalidConfiguration, fmt.Sprintf("failed to resolve absolute path: %v", err)))
	}
	c.ResultsPath = absResults

	if len(c.ResultsPath) > lockfile.MaxNameLength {
		return invalid(KeyResults, c.ResultsPath, fmt.Sprintf("path longer than %d characters cannot be locked", lockfile.MaxNameLength))
	}

	if c.LogFile == "" {
		// Follow XDG Base Directory Specification
		logDir := os.Getenv("XDG_DATA_HOME")
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err == nil {
				logDir = filepath.Join(homeDir, ".local", "share")
			} else {
				logDir = os.TempDir()
			}
		}

		// One log per results file, so processes sharing it share a log
		resultsHash := fmt.Sprintf("%x", sha256OfString(c.ResultsPath)[:8])
		c.LogFile = filepath.Join(logDir, "lockrun", "logs", fmt.Sprintf("lockrun-%s.log", resultsHash))
	}

	return nil
}

// invalid builds the ConfigError returned by Finalize.
func invalid(param string, value interface{}, reason string) error {
	return errors.NewConfigError(param, value, errors.Wrap(errors.ErrInvalidConfiguration, reason))
}

// sha256OfString returns the SHA256 hash of a string
func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
