package shutdown

import (
	"sync"
	"sync/atomic"
)

// Mode tells the handler what kind of work the run loop is doing, which only
// changes how the first-signal notice is worded.
type Mode int32

const (
	// ModeNormal is a regular batch run; the unit of work is a class.
	ModeNormal Mode = iota

	// ModeSelfTest is the startup self-test; the unit of work is a test.
	ModeSelfTest
)

// Unit names the unit of work the run loop finishes before stopping.
func (m Mode) Unit() string {
	if m == ModeNormal {
		return "class"
	}
	return "test"
}

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeSelfTest:
		return "SELFTEST"
	default:
		return "UNKNOWN"
	}
}

// State is the run state shared between the run loop and the signal handler.
// The run loop owns it and sets its mode; the handler only increments Quit.
type State struct {
	quit      atomic.Int32
	mode      atomic.Int32
	announced atomic.Bool

	stopOnce sync.Once
	stopping chan struct{}
}

// NewState creates a running state in the given mode.
func NewState(mode Mode) *State {
	s := &State{stopping: make(chan struct{})}
	s.mode.Store(int32(mode))
	return s
}

// Quit returns the number of stop requests received so far.
func (s *State) Quit() int {
	return int(s.quit.Load())
}

// Requested reports whether at least one stop request was received.
func (s *State) Requested() bool {
	return s.quit.Load() > 0
}

// Mode returns the current mode.
func (s *State) Mode() Mode {
	return Mode(s.mode.Load())
}

// SetMode switches the mode, e.g. when the self-test hands over to the run.
func (s *State) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// Stopping is closed on the first stop request.
func (s *State) Stopping() <-chan struct{} {
	return s.stopping
}

// request records one stop request and returns the new count.
func (s *State) request() int {
	n := int(s.quit.Add(1))
	s.stopOnce.Do(func() { close(s.stopping) })
	return n
}
