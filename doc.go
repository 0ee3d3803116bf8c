// Package uco is a single-threaded user-space coroutine ("uthread") runtime
// with an integrated non-blocking I/O event loop.
//
// Application code written in straight-line, blocking style runs as
// cooperative coroutines. When a uthread issues a socket operation that
// would block, the runtime parks it, registers interest with a reactor, and
// resumes it once readiness is reported. Exactly one uthread executes at a
// time; switches only happen at explicit suspension points (socket I/O,
// mutex acquisition, join, yield).
//
// The runtime itself owns three cooperating logical coroutines sharing one
// OS thread in spirit: a scheduler, an I/O pump, and the stack/identity
// allocators backing both. See runtime.go for the process-wide handle.
package uco
