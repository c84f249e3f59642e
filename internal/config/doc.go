// Package config provides configuration handling for the lockrun application.
//
// This package manages all configuration parameters for lockrun: the batch
// run, the lock protocol tuning and logging. Values come from flags,
// environment variables, an optional config file and defaults, resolved
// through viper, and are validated by Finalize before use.
//
// # Core Components
//
// - Config: Main configuration type that holds all lockrun settings
// - VersionInfo: Type for version, commit, and build date information
//
// # Configuration Sources
//
// Configuration values are loaded with the following precedence:
//
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Config file (--config, any format viper reads)
// 4. Default values (lowest priority)
//
// # Environment Variables
//
// Every key has an environment variable with the LOCKRUN_ prefix:
//
//	LOCKRUN_RESULTS            Shared results file (default: results.txt)
//	LOCKRUN_UNITS              Units to run, 0 for until stopped (default: 0)
//	LOCKRUN_FIRST_UNIT         Number of the first unit (default: 1)
//	LOCKRUN_CHECKSUM_ROUNDS    Rounds per unit of the built-in workload
//	LOCKRUN_SELFTEST           Run the lock self-test first (default: true)
//	LOCKRUN_RETRIES            Retries of `lockrun hold` (default: unbounded)
//	LOCKRUN_MAX_LOCKS          Locks held at once (default: 5)
//	LOCKRUN_BACKOFF_INITIAL    First backoff sleep (default: 30ms)
//	LOCKRUN_BACKOFF_MAX        Backoff cap (default: 1s)
//	LOCKRUN_WAIT_NOTICE_AFTER  Failed attempts before the waiting notice (default: 50)
//	LOCKRUN_VERBOSE            Report every finished unit (default: false)
//	LOCKRUN_QUIET              Hide informational messages (default: false)
//	LOCKRUN_DEBUG              Enable debug logging (default: false)
//	LOCKRUN_LOG_FILE           Path to log file
//	LOCKRUN_METRICS_TEXTFILE   Write metrics to this file on exit
//
// # Usage
//
//	v, err := config.NewViper(cmd.Flags())
//	if err != nil {
//	    // Handle error
//	}
//	cfg := config.Load(v)
//	if err := cfg.Finalize(); err != nil {
//	    // Handle error
//	}
//
// # Thread Safety
//
// The Config type is not designed to be thread-safe. Configuration is loaded
// at startup and then used in a read-only fashion by the application.
package config
