package uco

import "time"

// ReadyEvent is one fd's readiness report for a single pump step: events
// from the reactor are delivered to the pump in a batch for atomicity. Err
// is non-nil when the kernel reported a hangup or error condition for fd,
// which the socket watcher treats as sticky.
type ReadyEvent struct {
	Fd       int
	Readable bool
	Writable bool
	Err      error
}

// Reactor is the non-blocking I/O multiplexer capability, kept external:
// any readiness-notifying multiplexer suffices, referenced only by the
// operations it offers. uco ships two
// concrete backends (reactor_epoll_linux.go, reactor_kqueue_bsd.go) behind
// this interface; callers may also supply their own.
type Reactor interface {
	// Watch begins level-triggered monitoring of fd for both read and
	// write readiness.
	Watch(fd int) error
	// Unwatch stops monitoring fd. Safe to call on an fd already removed
	// by the kernel (e.g. after close).
	Unwatch(fd int)
	// Poll blocks for at most timeout (or indefinitely if timeout < 0)
	// waiting for at least one readiness event, batching everything
	// available without blocking further. It returns promptly with an empty
	// slice on timeout.
	Poll(timeout time.Duration) ([]ReadyEvent, error)
	// Close releases the reactor's own kernel resources (the epoll/kqueue
	// fd itself). It does not close watched fds.
	Close() error
}
