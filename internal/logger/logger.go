package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger separates the debug log from what the operator sees.
//
// Info goes to the debug log only. Warning and Error go to the debug log and
// always to the error stream, so lock cleanup failures and directory-restore
// problems surface even without a log file. The *ToUser, Success and
// StatusMessage methods write to standard output.
//
// All methods take fmt.Printf style arguments.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})

	// InfoToUser is suppressed in quiet mode.
	InfoToUser(format string, args ...interface{})

	// WarningToUser is shown even in quiet mode.
	WarningToUser(format string, args ...interface{})

	// Success is suppressed in quiet mode.
	Success(format string, args ...interface{})

	// StatusMessage prints a plain line without any prefix. Lock contention
	// notices ("waiting", "Locked") and the shutdown messages use it.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the debug log file, if one is open.
	Close() error
}

// stream selects the operator-facing destination of a message.
type stream int

const (
	toNone stream = iota
	toStdout
	toStderr
)

// route describes where one kind of message ends up.
type route struct {
	level     slog.Level
	stream    stream
	prefix    string
	quietable bool
}

var (
	routeInfo          = route{level: slog.LevelInfo, stream: toNone}
	routeWarning       = route{level: slog.LevelWarn, stream: toStderr, prefix: "Warning: "}
	routeError         = route{level: slog.LevelError, stream: toStderr, prefix: "❌ "}
	routeInfoToUser    = route{level: slog.LevelInfo, stream: toStdout, prefix: "ℹ️  ", quietable: true}
	routeWarningToUser = route{level: slog.LevelWarn, stream: toStdout, prefix: "⚠️  "}
	routeSuccess       = route{level: slog.LevelInfo, stream: toStdout, prefix: "✅ ", quietable: true}
	routeStatus        = route{level: slog.LevelDebug, stream: toStdout}
)

// DefaultLogger writes the debug log through log/slog and operator messages
// to the given writers. It is safe for concurrent use.
type DefaultLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	enabled bool
	quiet   bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
}

// New creates a Logger writing to the process's standard streams.
func New(enabled bool, logFile string, quiet bool) Logger {
	return NewWithOutput(enabled, logFile, quiet, os.Stdout, os.Stderr)
}

// NewWithOutput creates a DefaultLogger with custom output writers. The debug
// log is only written when enabled is set and logFile is not empty; if the
// file cannot be opened the debug log falls back to stderr.
func NewWithOutput(enabled bool, logFile string, quiet bool, stdout, stderr io.Writer) *DefaultLogger {
	l := &DefaultLogger{
		enabled: enabled && logFile != "",
		quiet:   quiet,
		stdout:  stdout,
		stderr:  stderr,
	}

	if !l.enabled {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return l
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	f, err := openLogFile(logFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "⚠️ Failed to open log file: %v, using stderr instead\n", err)
		l.logger = slog.New(slog.NewTextHandler(stderr, opts))
		return l
	}

	l.file = f
	l.logger = slog.New(slog.NewTextHandler(f, opts)).With("pid", os.Getpid())
	l.logger.Info("lockrun debug logging started", "file", logFile)
	return l
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func (l *DefaultLogger) emit(r route, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enabled && msg != "" {
		l.logger.Log(context.Background(), r.level, msg)
	}

	var w io.Writer
	switch r.stream {
	case toStdout:
		if r.quietable && l.quiet {
			return
		}
		w = l.stdout
	case toStderr:
		w = l.stderr
	default:
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", r.prefix, msg)
}

func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.emit(routeInfo, format, args)
}

func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.emit(routeWarning, format, args)
}

func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.emit(routeError, format, args)
}

func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.emit(routeInfoToUser, format, args)
}

func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.emit(routeWarningToUser, format, args)
}

func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.emit(routeSuccess, format, args)
}

func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.emit(routeStatus, format, args)
}

// Close syncs and closes the debug log file. Later messages are dropped from
// the debug log but still reach the operator.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	l.enabled = false

	if syncErr != nil {
		return syncErr
	}
	return closeErr
}
