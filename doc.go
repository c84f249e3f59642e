// Package lockrun runs long batches of work units against shared files
//
// lockrun computes work units one after another and appends each result to a
// results file that any number of lockrun processes may share, on one host or
// across a network filesystem. Access to the shared file is serialized with
// lock files: a process owns <file>.lck while it has created it, and nobody
// else can create it until the owner deletes it. No flock or fcntl support is
// needed from the filesystem.
//
// # Quick Start
//
//	# Run the built-in workload until Ctrl+C
//	lockrun run
//
//	# Run 100 units of an external command, sharing results.txt with others
//	lockrun run --units 100 -- ./compute.sh
//
//	# Press Ctrl+C once to stop after the current unit, twice to stop now
//
// # Key Features
//
//   - Atomic Lock Files: Exclusive creation with capped exponential backoff
//   - Lock Table: A small per-process table of held locks with typed handles
//   - Two-Stage Interrupt: Finish the current unit first, or leave immediately
//   - Self-Test: Checks the lock protocol in a scratch directory before a run
//   - Stale Lock Inspection: Reports and removes locks whose holder has died
//
// # Module Structure
//
// The module is organized into these packages:
//
//   - cmd/lockrun: Command-line interface
//   - internal/lockfile: Lock files and the per-process lock table
//   - internal/shutdown: Two-stage signal handling and stop requests
//   - internal/batch: Work units, workers, the run loop and the self-test
//   - internal/config: Configuration from flags, environment and config files
//   - internal/logger: Logging facilities
//   - internal/errors: Error handling utilities
//
// # Common Configuration Options
//
//	# Write results somewhere else
//	lockrun run --results /shared/results.txt
//
//	# Start numbering at 500 and skip the self-test
//	lockrun run --first-unit 500 --selftest=false
//
//	# Settings can also come from the environment
//	LOCKRUN_UNITS=10 lockrun run
//
// # Inspecting Locks
//
//	# Keep another run waiting for a minute
//	lockrun hold results.txt --for 1m
//
//	# Who holds the lock? Remove it if its process is gone
//	lockrun status results.txt --clean
//
// # Implementation Notes
//
// A second interrupt ends the process without releasing its locks, so a lock
// file may outlive it. Such a lock names a PID that no longer runs and is
// removed with status --clean.
package lockrun
