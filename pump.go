package uco

import "time"

// pumpOnce is the I/O pump coroutine, collapsed into a
// plain method call: since the pump never itself suspends mid-step (it
// always runs exactly one non-blocking reactor step and returns), modeling
// it as a second goroutine+channel pair the scheduler switches into would
// add no semantics over calling it directly from the scheduler's own call
// stack.
//
// It drives the reactor once with the given timeout (a negative duration
// blocks indefinitely; Run always passes -1, since no deadlines are
// tracked), then translates each reported readiness into a
// wake-up on the relevant socket's wait queues, which in turn pushes
// uthreads onto the runnable FIFO.
func (rt *Runtime) pumpOnce(timeout time.Duration) error {
	events, err := rt.reactor.Poll(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		sk, ok := rt.socks.get(sockID(ev.Fd))
		if !ok {
			// socket already closed/released between the kernel reporting
			// the event and the pump processing it; drop silently.
			continue
		}
		if ev.Err != nil {
			sk.onError(ev.Err)
			continue
		}
		if ev.Readable {
			sk.onReadable()
		}
		if ev.Writable {
			sk.onWritable()
		}
	}
	return nil
}
