// Package logger provides logging facilities for the lockrun application.
//
// The logger separates two audiences. Internal messages go to an optional
// debug log file written through log/slog's text handler. Operator messages
// go to stdout (progress, contention notices) or stderr (warnings and errors).
//
// # Core Components
//
// - Logger: The interface used throughout the application
// - DefaultLogger: Standard implementation that writes to console and/or file
//
// # Message Types
//
//   - Info: debug log file only
//   - Warning: log file and stderr, always
//   - Error: log file and stderr, always
//   - InfoToUser, Success: log file and stdout unless quiet
//   - WarningToUser: log file and stdout, always
//   - StatusMessage: plain stdout line, always
//
// Lock-table diagnostics rely on Warning and Error reaching stderr even when no
// debug log is configured: a lock file that could not be deleted, or a working
// directory that could not be restored, must never go unnoticed.
//
// # Usage
//
//	log := logger.New(cfg.Debug, cfg.LogFile, cfg.Quiet)
//	defer log.Close()
//
//	log.Info("acquiring %s", path)
//	log.StatusMessage("Locked %s", path)
//
// # Thread Safety
//
// DefaultLogger is safe for concurrent use by multiple goroutines.
package logger
