package batch

import (
	"context"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bashhack/lockrun/internal/errors"
)

// mockExecutor records commands instead of running them.
type mockExecutor struct {
	Output   string
	Err      error
	Commands []*exec.Cmd
}

func (m *mockExecutor) ExecuteWithOutput(_ context.Context, cmd *exec.Cmd) (string, error) {
	m.Commands = append(m.Commands, cmd)
	return m.Output, m.Err
}

func TestCommandWorker(t *testing.T) {
	tests := map[string]struct {
		command  []string
		output   string
		err      error
		wantLine string
		wantErr  error
	}{
		"TrimsOutput": {
			command:  []string{"factor", "--class"},
			output:   "  M1277 no factor from 2^1 to 2^64\n",
			wantLine: "M1277 no factor from 2^1 to 2^64",
		},
		"EmptyOutput": {
			command:  []string{"true"},
			wantLine: "unit 7: ok",
		},
		"CommandFails": {
			command: []string{"false"},
			output:  "partial",
			err:     errors.Wrap(errors.ErrUnitFailed, "exit status 1"),
			wantErr: errors.ErrUnitFailed,
		},
		"NoCommand": {
			wantErr: errors.ErrInvalidConfiguration,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			executor := &mockExecutor{Output: tc.output, Err: tc.err}
			worker := &CommandWorker{Command: tc.command, Executor: executor}

			line, err := worker.Run(context.Background(), 7)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected %v, got %v", tc.wantErr, err)
				}
				var unitErr *errors.UnitError
				if !errors.As(err, &unitErr) || unitErr.Unit != 7 {
					t.Errorf("Expected a UnitError for unit 7, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if line != tc.wantLine {
				t.Errorf("Expected %q, got %q", tc.wantLine, line)
			}

			if len(executor.Commands) != 1 {
				t.Fatalf("Expected one command, got %d", len(executor.Commands))
			}
			cmd := executor.Commands[0]
			if !slices.Equal(cmd.Args, tc.command) {
				t.Errorf("Expected args %v, got %v", tc.command, cmd.Args)
			}
			if !slices.Contains(cmd.Env, UnitEnv+"=7") {
				t.Errorf("Expected %s=7 in the command environment", UnitEnv)
			}
		})
	}
}

func TestChecksumWorker(t *testing.T) {
	worker := &ChecksumWorker{Rounds: 1000}

	first, err := worker.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	again, err := worker.Run(context.Background(), 3)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	other, err := worker.Run(context.Background(), 4)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if first != again {
		t.Errorf("Expected deterministic output, got %q and %q", first, again)
	}
	if first == other {
		t.Errorf("Expected different units to differ, both gave %q", first)
	}
	if !strings.HasPrefix(first, "unit 3: sha256^1000 ") {
		t.Errorf("Unexpected result line %q", first)
	}
}

func TestChecksumWorker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := &ChecksumWorker{Rounds: 10000}
	if _, err := worker.Run(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestHelperProcess is not a real test. ExecExecutor tests run the test binary
// as their external command.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("LOCKRUN_HELPER")
	if mode == "" {
		t.Skip("helper process")
	}

	switch mode {
	case "echo":
		_, _ = os.Stdout.WriteString("unit " + os.Getenv(UnitEnv) + " computed\n")
		os.Exit(0)
	case "fail":
		_, _ = os.Stderr.WriteString("no GPU available\n")
		os.Exit(2)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(1)
}

func helperCommand(mode string) *exec.Cmd {
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), "LOCKRUN_HELPER="+mode, UnitEnv+"=5")
	return cmd
}

func TestExecExecutor(t *testing.T) {
	executor := NewExecExecutor()

	t.Run("Success", func(t *testing.T) {
		out, err := executor.ExecuteWithOutput(context.Background(), helperCommand("echo"))
		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		if strings.TrimSpace(out) != "unit 5 computed" {
			t.Errorf("Unexpected output %q", out)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		_, err := executor.ExecuteWithOutput(context.Background(), helperCommand("fail"))
		if !errors.Is(err, errors.ErrUnitFailed) {
			t.Fatalf("Expected ErrUnitFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "no GPU available") {
			t.Errorf("Expected stderr in the error, got %v", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cmd := helperCommand("hang")

		done := make(chan error, 1)
		go func() {
			_, err := executor.ExecuteWithOutput(ctx, cmd)
			done <- err
		}()
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, err := executor.ExecuteWithOutput(context.Background(), exec.Command("/nonexistent/lockrun-worker"))
		if !errors.Is(err, errors.ErrUnitFailed) {
			t.Errorf("Expected ErrUnitFailed, got %v", err)
		}
	})
}
