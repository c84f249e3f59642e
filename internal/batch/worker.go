package batch

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bashhack/lockrun/internal/errors"
)

// UnitEnv is the environment variable through which a command worker learns
// which unit it is running.
const UnitEnv = "LOCKRUN_UNIT"

// Worker performs one unit of work and returns the line to append to the
// results file.
type Worker interface {
	Run(ctx context.Context, unit int) (string, error)
}

// CommandWorker runs an external command per unit. The unit number is passed
// in UnitEnv and the trimmed standard output becomes the result line.
type CommandWorker struct {
	Command  []string
	Executor CommandExecutor
}

// NewCommandWorker creates a worker that runs command with the default executor.
func NewCommandWorker(command []string) *CommandWorker {
	return &CommandWorker{
		Command:  command,
		Executor: NewExecExecutor(),
	}
}

// Run implements Worker.
func (w *CommandWorker) Run(ctx context.Context, unit int) (string, error) {
	if len(w.Command) == 0 {
		return "", errors.NewUnitError(unit, errors.Wrap(errors.ErrInvalidConfiguration, "no command configured"), "")
	}

	cmd := exec.Command(w.Command[0], w.Command[1:]...)
	cmd.Env = append(os.Environ(), UnitEnv+"="+strconv.Itoa(unit))

	output, err := w.Executor.ExecuteWithOutput(ctx, cmd)
	output = strings.TrimSpace(output)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", errors.NewUnitError(unit, err, output)
	}
	if output == "" {
		output = fmt.Sprintf("unit %d: ok", unit)
	}

	return output, nil
}

// ChecksumWorker is the built-in workload: it folds the unit number through
// Rounds iterations of SHA-256. It exists so the lock and shutdown machinery
// can be exercised without an external program.
type ChecksumWorker struct {
	Rounds int
}

// DefaultChecksumRounds keeps a unit of the built-in workload well under a second.
const DefaultChecksumRounds = 200000

// Run implements Worker. It checks ctx between blocks of rounds.
func (w *ChecksumWorker) Run(ctx context.Context, unit int) (string, error) {
	rounds := w.Rounds
	if rounds <= 0 {
		rounds = DefaultChecksumRounds
	}

	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(unit))
	sum := sha256.Sum256(seed[:])

	for i := 1; i < rounds; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		sum = sha256.Sum256(sum[:])
	}

	return fmt.Sprintf("unit %d: sha256^%d %s", unit, rounds, hex.EncodeToString(sum[:])), nil
}
