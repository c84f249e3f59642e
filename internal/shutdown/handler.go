package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bashhack/lockrun/internal/common"
)

// Variant selects how the handler reacts to a signal.
type Variant int

const (
	// Graceful asks the run loop to stop at its next checkpoint and exits only
	// when a second signal arrives.
	Graceful Variant = iota

	// Immediate exits on the first signal. It is meant for phases without a
	// useful checkpoint, such as the self-test.
	Immediate
)

// terminateAt is the quit count at which the graceful variant gives up waiting.
const terminateAt = 2

// Handler turns SIGINT and SIGTERM into stop requests on a State.
//
// Signals are received on a dedicated goroutine that only counts them and, once
// the terminating threshold is reached, prints a notice and exits. The notice
// for the first signal is printed by Checkpoint, which the run loop calls
// between units of work.
type Handler struct {
	mu      sync.Mutex
	state   *State
	variant Variant
	started bool

	signals []os.Signal
	ch      chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	stop    sync.Once

	notify   func(chan<- os.Signal, ...os.Signal)
	unnotify func(chan<- os.Signal)
	exit     func(int)
	logger   common.Logger
	name     string
}

// Option configures a Handler.
type Option func(*Handler)

// WithExit replaces os.Exit. Tests use it to observe the exit code.
func WithExit(exit func(int)) Option {
	return func(h *Handler) {
		if exit != nil {
			h.exit = exit
		}
	}
}

// WithLogger sets where the stop notices are printed.
func WithLogger(l common.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSignals overrides the signals the handler is bound to.
func WithSignals(sigs ...os.Signal) Option {
	return func(h *Handler) {
		if len(sigs) > 0 {
			h.signals = sigs
		}
	}
}

// WithName sets the program name used in notices.
func WithName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.name = name
		}
	}
}

// NewHandler creates a handler. Nothing is bound until RegisterGraceful or
// RegisterImmediate is called.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		done:     make(chan struct{}),
		notify:   signal.Notify,
		unnotify: signal.Stop,
		exit:     os.Exit,
		logger:   common.NopLogger{},
		name:     "lockrun",
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// RegisterGraceful binds the graceful variant to state.
func (h *Handler) RegisterGraceful(state *State) {
	h.register(Graceful, state)
}

// RegisterImmediate binds the immediate variant to state.
func (h *Handler) RegisterImmediate(state *State) {
	h.register(Immediate, state)
}

// register swaps the active variant and state, binding the signals the first
// time it is called.
func (h *Handler) register(v Variant, state *State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.variant = v
	h.state = state

	if h.started {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	h.started = true

	h.ch = make(chan os.Signal, 1)
	h.notify(h.ch, h.signals...)

	h.wg.Add(1)
	go h.dispatch()
}

func (h *Handler) dispatch() {
	defer h.wg.Done()

	for {
		select {
		case sig := <-h.ch:
			h.Handle(sig)
		case <-h.done:
			return
		}
	}
}

// Variant returns the active variant.
func (h *Handler) Variant() Variant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.variant
}

// State returns the state the handler currently updates.
func (h *Handler) State() *State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Handle processes one received signal. It is what the dispatch goroutine
// runs for every delivery.
func (h *Handler) Handle(sig os.Signal) {
	h.mu.Lock()
	state, variant := h.state, h.variant
	h.mu.Unlock()

	if state == nil {
		return
	}

	n := state.request()
	if variant == Graceful && n < terminateAt {
		return
	}

	h.logger.StatusMessage("%s will exit NOW!", h.name)
	h.exit(ExitCode(sig))
}

// Checkpoint reports whether the run loop should stop after the current unit
// of work. The first time it sees a stop request it tells the operator what
// is going to happen.
func (h *Handler) Checkpoint() bool {
	state := h.State()
	if state == nil || !state.Requested() {
		return false
	}

	if state.announced.CompareAndSwap(false, true) {
		h.logger.StatusMessage("")
		h.logger.StatusMessage("%s will exit once the current %s is finished.", h.name, state.Mode().Unit())
		h.logger.StatusMessage("press ^C again to exit immediately")
	}

	return true
}

// Stop unbinds the signals and waits for the dispatch goroutine to return.
func (h *Handler) Stop() {
	h.stop.Do(func() {
		h.mu.Lock()
		started := h.started
		h.mu.Unlock()

		if started {
			h.unnotify(h.ch)
		}
		close(h.done)
		h.wg.Wait()
	})
}

// ExitCode returns the conventional status for death by sig: 128 plus the
// signal number.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
