// Package errors provides error handling utilities for the lockrun application.
//
// This package defines the sentinel errors of the lock protocol and the batch
// runner, together with typed errors that carry the context a caller needs to
// report a failure: the lock file involved, the failing work unit, or the
// offending configuration parameter.
//
// # Sentinel Errors
//
//   - ErrNameTooLong: resource name exceeds the lock name limit
//   - ErrTableFull: the process already holds the maximum number of locks
//   - ErrLockUnavailable: retries ran out while another process held the lock
//   - ErrLockIO: unexpected OS failure while creating the lock file
//   - ErrOpenFailed: the resource could not be opened after locking it
//   - ErrNotFound: release requested for a lock this process does not hold
//   - ErrInvalidConfiguration: invalid user configuration
//   - ErrUnitFailed: a batch work unit did not complete
//
// # Usage
//
//	tok, err := table.Acquire(ctx, "results.txt", 10)
//	if errors.Is(err, errors.ErrLockUnavailable) {
//	    // someone else still holds results.txt.lck
//	}
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) {
//	    fmt.Println(lockErr.LockFile)
//	}
//
// Errors leave this process as text only: the CLI prints them and exits with
// status 1. Nothing matches on message text.
package errors
