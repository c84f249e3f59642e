package batch

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/bashhack/lockrun/internal/errors"
)

// CommandExecutor runs external commands for a CommandWorker.
type CommandExecutor interface {
	// ExecuteWithOutput runs cmd and returns its standard output
	ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput.
// A failing command yields an error wrapping ErrUnitFailed that carries the
// command's stderr.
func (e *ExecExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(errors.ErrUnitFailed, "cannot start %s: %v", cmd.Path, err)
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	select {
	case err := <-waitDone:
		if err != nil {
			return stdout.String(), errors.Wrapf(errors.ErrUnitFailed, "%s: %v: %s",
				strings.Join(cmd.Args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), nil
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-waitDone
		return "", ctx.Err()
	}
}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}
