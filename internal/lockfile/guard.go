package lockfile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/bashhack/lockrun/internal/common"
)

// DirGuard pins the working directory that relative lock paths resolve against.
//
// The directory (and, on Windows, its volume) is captured the first time Ensure
// runs and is never refreshed. Every later Ensure switches back to it, so a
// caller that changes directory between two lock calls still creates and
// removes the same lock files.
type DirGuard struct {
	once  sync.Once
	dir   string
	drive string

	getwd  func() (string, error)
	chdir  func(string) error
	logger common.Logger
}

// NewDirGuard returns a guard that captures the process working directory lazily.
func NewDirGuard(logger common.Logger) *DirGuard {
	return newDirGuard(logger, os.Getwd, os.Chdir)
}

func newDirGuard(logger common.Logger, getwd func() (string, error), chdir func(string) error) *DirGuard {
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &DirGuard{
		getwd:  getwd,
		chdir:  chdir,
		logger: logger,
	}
}

// Ensure captures the working directory on first use, then switches to the
// captured drive and directory. Failures are reported as warnings only.
func (g *DirGuard) Ensure() {
	g.once.Do(func() {
		dir, err := g.getwd()
		if err != nil {
			g.logger.Info("Failed to capture working directory: %v", err)
			return
		}
		g.dir = dir
		g.drive = filepath.VolumeName(dir)
	})

	if g.dir == "" {
		g.logger.Warning("Current directory %q is not available.", g.dir)
		return
	}

	if g.drive != "" {
		if err := g.chdir(g.drive); err != nil {
			g.logger.Warning("Current directory %q is not available.", g.dir)
			return
		}
	}

	if err := g.chdir(g.dir); err != nil {
		g.logger.Warning("Current directory %q is not available.", g.dir)
	}
}

// Dir returns the captured directory, or "" before the first Ensure.
func (g *DirGuard) Dir() string {
	return g.dir
}
