package lockfile

import (
	"os"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/bashhack/lockrun/internal/common"
	"github.com/bashhack/lockrun/internal/logger"
)

const (
	// MaxLocks is the default number of locks a table may hold at once.
	MaxLocks = 5

	// MaxNameLength bounds the resource path passed to Acquire and OpenAndLock.
	MaxNameLength = 250

	// LockSuffix is appended to a resource path to name its lock file.
	LockSuffix = ".lck"

	// Unbounded asks Acquire to retry until the lock is obtained.
	Unbounded = -1

	// DefaultBackoffInitial is the first sleep after finding the lock taken.
	DefaultBackoffInitial = 30 * time.Millisecond

	// DefaultBackoffMax caps the doubling backoff.
	DefaultBackoffMax = time.Second

	// DefaultWaitNoticeAfter is the failed-attempt count that triggers the "waiting" notice.
	DefaultWaitNoticeAfter = 50
)

// entry is one held lock. It exclusively owns lockFile and, for handle-bound
// locks, the caller-visible file.
type entry struct {
	id       uint64
	lockFile *os.File
	file     *os.File
	lockPath string
}

// Token identifies a lock acquired with Acquire. It is only meaningful to the
// table that issued it.
type Token struct {
	id    uint64
	path  string
	owner *Table
}

// Path returns the lock file path the token refers to.
func (t Token) Path() string {
	return t.path
}

// IsZero reports whether t is the zero Token, which no table ever issues.
func (t Token) IsZero() bool {
	return t.id == 0
}

// Table tracks the lock files held by this process.
//
// A Table is not safe for concurrent use; callers sharing one across goroutines
// must serialize access. Mutual exclusion between processes (or between
// independent tables) comes from exclusive creation of the lock file itself.
type Table struct {
	entries  []*entry
	capacity int
	nextID   uint64

	guard  *DirGuard
	logger common.Logger
	clock  clock.Clock

	backoffInitial  time.Duration
	backoffMax      time.Duration
	waitNoticeAfter int

	pid     int
	metrics *Metrics
	create  func(string) (*os.File, error)
}

// Option configures a Table.
type Option func(*Table)

// WithCapacity overrides MaxLocks.
func WithCapacity(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithLogger sets where contention notices and cleanup failures are reported.
func WithLogger(l common.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock sets the clock used for backoff sleeps.
func WithClock(c clock.Clock) Option {
	return func(t *Table) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithBackoff overrides the initial and maximum backoff delays.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(t *Table) {
		if initial > 0 {
			t.backoffInitial = initial
		}
		if maxDelay > 0 {
			t.backoffMax = maxDelay
		}
	}
}

// WithWaitNoticeAfter sets after how many failed attempts the one-time
// "waiting" notice is printed.
func WithWaitNoticeAfter(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.waitNoticeAfter = n
		}
	}
}

// WithGuard shares a directory guard between tables.
func WithGuard(g *DirGuard) Option {
	return func(t *Table) {
		if g != nil {
			t.guard = g
		}
	}
}

// WithMetrics records table activity into m.
func WithMetrics(m *Metrics) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// NewTable creates an empty lock table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		capacity:        MaxLocks,
		logger:          logger.NewWithOutput(false, "", false, os.Stdout, os.Stderr),
		clock:           clock.WallClock,
		backoffInitial:  DefaultBackoffInitial,
		backoffMax:      DefaultBackoffMax,
		waitNoticeAfter: DefaultWaitNoticeAfter,
		pid:             os.Getpid(),
		create:          createExclusive,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.guard == nil {
		t.guard = NewDirGuard(t.logger)
	}
	if t.backoffMax < t.backoffInitial {
		t.backoffMax = t.backoffInitial
	}
	t.entries = make([]*entry, 0, t.capacity)

	return t
}

// Len returns the number of locks currently held.
func (t *Table) Len() int {
	return len(t.entries)
}

// Capacity returns the maximum number of locks the table may hold.
func (t *Table) Capacity() int {
	return t.capacity
}

// Held returns the held lock file paths in acquisition order.
func (t *Table) Held() []string {
	paths := make([]string, len(t.entries))
	for i, e := range t.entries {
		paths[i] = e.lockPath
	}
	return paths
}

// Find returns the token of the lock held on the resource at path.
func (t *Table) Find(path string) (Token, bool) {
	lockPath := path + LockSuffix
	for _, e := range t.entries {
		if e.lockPath == lockPath {
			return Token{id: e.id, path: e.lockPath, owner: t}, true
		}
	}
	return Token{}, false
}

func (t *Table) indexOf(id uint64) int {
	return slices.IndexFunc(t.entries, func(e *entry) bool { return e.id == id })
}

func (t *Table) indexOfFile(f *os.File) int {
	return slices.IndexFunc(t.entries, func(e *entry) bool { return e.file == f })
}

// record appends e and returns its 1-based position.
func (t *Table) record(e *entry) int {
	t.nextID++
	e.id = t.nextID
	t.entries = append(t.entries, e)
	return len(t.entries)
}

// release closes and deletes the lock file at idx and compacts the table.
// Cleanup failures are reported but never keep the slot occupied. The
// associated file, if any, is left to the caller.
func (t *Table) release(idx int) {
	e := t.entries[idx]

	if err := e.lockFile.Close(); err != nil {
		t.logger.Error("Failed to close lockfile %s: %v", e.lockPath, err)
	}
	if err := os.Remove(e.lockPath); err != nil {
		t.logger.Error("Failed to delete lockfile %s: %v", e.lockPath, err)
	}

	*e = entry{}
	t.entries = slices.Delete(t.entries, idx, idx+1)
	t.metrics.released(len(t.entries))
}
