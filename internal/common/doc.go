// Package common provides the interfaces shared by lockrun's library packages.
//
// Library packages (lockfile, shutdown, batch) accept a common.Logger rather
// than the concrete logger so tests can capture output and so the packages stay
// free of any dependency on how logs are stored.
//
// # Core Components
//
// - Logger: logging methods the library packages call
// - NopLogger: a Logger that discards everything
//
// # Usage
//
//	table := lockfile.NewTable(lockfile.WithLogger(log))
//
// # Design Principles
//
// - Minimal Dependencies: no imports of other internal packages
// - Interface-Based Design: favors interfaces over concrete implementations
package common
