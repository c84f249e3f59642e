// Package batch runs the long-lived work loop that the lock and shutdown
// packages protect.
//
// A Runner asks its Worker for one unit at a time and appends each result line
// to a shared results file. The append happens under a handle-bound lock
// (OpenAndLock / UnlockAndClose), so several lockrun processes can feed the
// same file. Between units the runner polls a Checkpointer, normally a
// shutdown.Handler, and returns cleanly once a stop was requested.
//
// Two workers are provided: CommandWorker runs an external program per unit
// and ChecksumWorker is a built-in CPU workload.
package batch
