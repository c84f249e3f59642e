package common

// Logger is the subset of logging the library packages need.
// internal/logger.DefaultLogger satisfies it.
type Logger interface {
	// Info logs to the debug log file only
	Info(format string, args ...interface{})

	// Warning reports a non-fatal problem on the error stream
	Warning(format string, args ...interface{})

	// Error reports a failure on the error stream
	Error(format string, args ...interface{})

	// InfoToUser logs an informational message to the user
	InfoToUser(format string, args ...interface{})

	// WarningToUser logs a warning message to the user
	WarningToUser(format string, args ...interface{})

	// Success logs a success message to the user
	Success(format string, args ...interface{})

	// StatusMessage prints a plain line on standard output
	StatusMessage(format string, args ...interface{})
}

// NopLogger discards everything. Useful as a default when callers pass nil.
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})          {}
func (NopLogger) Warning(string, ...interface{})       {}
func (NopLogger) Error(string, ...interface{})         {}
func (NopLogger) InfoToUser(string, ...interface{})    {}
func (NopLogger) WarningToUser(string, ...interface{}) {}
func (NopLogger) Success(string, ...interface{})       {}
func (NopLogger) StatusMessage(string, ...interface{}) {}
