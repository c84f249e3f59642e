package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	logFile := filepath.Join(tempDir, "nested", "test.log")

	logger := New(false, logFile, false)
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug disabled")
	}

	if _, err := os.Stat(logFile); err == nil {
		t.Error("Expected no log file to be created when debug is disabled")
	}

	logger = New(true, logFile, false)
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug enabled")
	}

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("Expected log file to be created when debug is enabled: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "lockrun debug logging started") {
		t.Error("Expected initial message to be logged")
	}
}

func TestLogging(t *testing.T) {
	t.Parallel()
	logFile := filepath.Join(t.TempDir(), "test.log")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	logger := NewWithOutput(true, logFile, false, stdout, stderr)

	logger.Info("Test info message")
	logger.Warning("Test warning message")
	logger.Error("Test error message")

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)
	for _, want := range []string{"Test info message", "Test warning message", "Test error message"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Expected %q to be logged", want)
		}
	}

	if strings.Contains(stdout.String(), "Test info message") {
		t.Error("Expected Info to stay out of stdout")
	}
	if !strings.Contains(stderr.String(), "Warning: Test warning message") {
		t.Errorf("Expected warning on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "❌ Test error message") {
		t.Errorf("Expected error on stderr, got %q", stderr.String())
	}
}

func TestWarningsReachStderrWithoutLogFile(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	logger := NewWithOutput(false, "", false, stdout, stderr)

	logger.Info("hidden")
	logger.Warning("Current directory %q is not available.", "/gone")

	if stdout.Len() != 0 {
		t.Errorf("Expected nothing on stdout, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), `Current directory "/gone" is not available.`) {
		t.Errorf("Expected warning on stderr, got %q", stderr.String())
	}
}

func TestUserMessages(t *testing.T) {
	t.Parallel()
	logFile := filepath.Join(t.TempDir(), "test.log")

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}

	logger := NewWithOutput(true, logFile, false, stdoutBuf, stderrBuf)
	defer func() {
		if err := logger.Close(); err != nil {
			t.Logf("Failed to close logger: %v", err)
		}
	}()

	tests := map[string]struct {
		log    func()
		prefix string
		text   string
	}{
		"InfoToUser": {
			log:    func() { logger.InfoToUser("Test info to user: %s", "message") },
			prefix: "ℹ️",
			text:   "Test info to user: message",
		},
		"Success": {
			log:    func() { logger.Success("Success message: %s", "completed") },
			prefix: "✅",
			text:   "Success message: completed",
		},
		"WarningToUser": {
			log:    func() { logger.WarningToUser("Warning to user: %s", "be careful") },
			prefix: "⚠️",
			text:   "Warning to user: be careful",
		},
		"StatusMessage": {
			log:    func() { logger.StatusMessage("Locked %s", "results.txt") },
			prefix: "",
			text:   "Locked results.txt",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			stdoutBuf.Reset()
			tc.log()
			output := stdoutBuf.String()

			if !strings.Contains(output, tc.prefix) || !strings.Contains(output, tc.text) {
				t.Errorf("%s did not produce expected output, got: %s", name, output)
			}

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("Failed to read log file: %v", err)
			}
			if !strings.Contains(string(content), tc.text) {
				t.Errorf("%s message was not written to log file", name)
			}
		})
	}
}

func TestQuietSuppressesChatter(t *testing.T) {
	t.Parallel()

	stdout := &bytes.Buffer{}
	logger := NewWithOutput(false, "", true, stdout, &bytes.Buffer{})

	logger.InfoToUser("info")
	logger.Success("done")
	if stdout.Len() != 0 {
		t.Errorf("Expected quiet mode to suppress info and success, got %q", stdout.String())
	}

	logger.WarningToUser("careful")
	logger.StatusMessage("Locked results.txt")
	if !strings.Contains(stdout.String(), "careful") || !strings.Contains(stdout.String(), "Locked results.txt") {
		t.Errorf("Expected warnings and status lines despite quiet mode, got %q", stdout.String())
	}
}
