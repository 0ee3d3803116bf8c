package uco

import (
	"container/list"
	"fmt"

	"github.com/rs/zerolog"
)

// Runtime is the process-wide singleton state: registries, id allocators,
// the runnable queue, the currently running uthread, and the reactor
// handle, expressed as a runtime handle with explicit init/teardown rather
// than a language-level global constructor — a Runtime is never
// constructed implicitly; callers must call Start.
type Runtime struct {
	cfg Config
	log zerolog.Logger

	tidAlloc  *idAllocator
	lockAlloc *idAllocator
	stacks    *stackBucket

	ths   *registry[uthreadID, *Uthread]
	// exited holds reaped uthreads whose tid has already been released
	// back to tidAlloc, keyed by the tid they were reaped under. A Join
	// arriving after reap has already run but before that tid is reissued
	// still needs to read the exit result from somewhere; spawn evicts the
	// stale entry here the moment its tid is actually handed to a new
	// uthread.
	exited *registry[uthreadID, *Uthread]
	socks  *registry[sockID, *CoroSock]
	locks  *registry[lockID, *CoroLock]

	runnable *list.List // of uthreadID, the scheduler's FIFO

	// self is the tid of the uthread currently executing, or invalidUthread
	// when the scheduler's own call stack (Run's goroutine) has control —
	// i.e. no uthread is running right now. Runtime.Lock uses self==invalid
	// to detect and reject calls made from the scheduler coroutine itself.
	self uthreadID

	reactor Reactor

	stopped bool
}

// globalRuntime backs the package-level free functions (Yield, Current)
// that mirror a C-style global-context API. Only ever read/written by
// whichever single logical coroutine currently has control, which is why
// no locking guards it: exactly one goroutine touches it at a time.
var globalRuntime *Runtime

func currentRuntime() *Runtime {
	if globalRuntime == nil {
		panic("uco: runtime not started; call uco.Start first")
	}
	return globalRuntime
}

// Start allocates and initializes a Runtime, opening the given reactor
// backend (see reactor.go). Passing a zero Config uses DefaultConfig.
func Start(cfg Config, reactor Reactor) (*Runtime, error) {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if reactor == nil {
		var err error
		reactor, err = newPlatformReactor(cfg)
		if err != nil {
			return nil, fmt.Errorf("uco: open reactor: %w", err)
		}
	}

	rt := &Runtime{
		cfg:       cfg,
		log:       newDefaultLogger(),
		tidAlloc:  newIDAllocator(),
		lockAlloc: newIDAllocator(),
		stacks:    newStackBucket(cfg.StackRegionSlots, cfg.StackSize),
		ths:       newRegistry[uthreadID, *Uthread](),
		exited:    newRegistry[uthreadID, *Uthread](),
		socks:     newRegistry[sockID, *CoroSock](),
		locks:     newRegistry[lockID, *CoroLock](),
		runnable:  list.New(),
		reactor:   reactor,
	}
	globalRuntime = rt
	rt.log.Info().Msg("runtime started")
	return rt, nil
}

// WithLogger overrides the runtime's zerolog logger, returning rt for
// chaining, matching the pack's "functional option returns self" style.
func (rt *Runtime) WithLogger(l zerolog.Logger) *Runtime {
	rt.log = l
	return rt
}

// Stop tears down the reactor and marks the runtime closed. Run returns at
// the top of its next loop iteration, without waiting for live uthreads to
// exit; a Run blocked inside an indefinite reactor poll is not woken by it.
func (rt *Runtime) Stop() error {
	if rt.stopped {
		return nil
	}
	rt.stopped = true
	rt.log.Info().Msg("runtime stopping")
	return rt.reactor.Close()
}

// selfUthread returns the currently-running uthread, panicking if called
// when no uthread has control (a fatal invariant violation —
// "self disagreement on resume" is explicitly listed as abort-worthy).
func (rt *Runtime) selfUthread() *Uthread {
	if rt.self == invalidUthread {
		panic("uco: operation requires a running uthread, but scheduler has control")
	}
	u, ok := rt.ths.get(rt.self)
	if !ok {
		panic("uco: internal invariant violation: self tid not registered")
	}
	return u
}

func (rt *Runtime) enqueueRunnable(tid uthreadID) {
	rt.runnable.PushBack(tid)
}
