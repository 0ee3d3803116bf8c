package uco

import "errors"

// Invalid-argument errors.
var (
	ErrInvalidTid    = errors.New("uco: invalid uthread id")
	ErrInvalidLockID = errors.New("uco: invalid lock id")
	ErrInvalidSock   = errors.New("uco: invalid socket")
	ErrNotOwner      = errors.New("uco: unlock by non-owner")
	ErrLockHeld      = errors.New("uco: release of held lock")
	ErrEmptyBuffer   = errors.New("uco: empty buffer")
	ErrRecursiveLock = errors.New("uco: recursive lock acquisition by owner")
)

// Transport errors.
var (
	ErrConnRefused   = errors.New("uco: connection refused")
	ErrConnReset     = errors.New("uco: connection reset")
	ErrSockEOF       = errors.New("uco: socket EOF")
	ErrSockError     = errors.New("uco: socket error")
	ErrWriteClosed   = errors.New("uco: write after close")
	ErrUnsupported   = errors.New("uco: unsupported operation")
	ErrRuntimeClosed = errors.New("uco: runtime stopped")
)

// Resource-exhaustion errors.
var (
	ErrStackExhausted = errors.New("uco: stack allocator exhausted")
	ErrRegisterFD     = errors.New("uco: reactor fd registration failed")
)

// Lifecycle errors.
var (
	ErrNoSuchUthread = errors.New("uco: join on nonexistent uthread")
	ErrDoubleClose   = errors.New("uco: double close")
	ErrFromScheduler = errors.New("uco: mutex lock invoked from scheduler coroutine")
)
