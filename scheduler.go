package uco

import "time"

// Run is the scheduler coroutine. It dequeues runnable
// uthreads, resumes them, and dispatches the event each published before
// suspending, driving the I/O pump whenever nothing is runnable. Run
// returns once every uthread has exited (the ths registry is empty) or the
// runtime is stopped.
//
// Most of the bookkeeping for a
// suspension — pushing the caller onto a socket's or lock's wait queue —
// is performed inline by the blocking operation itself (Read, Write, Open,
// Accept, Lock), since it already holds a direct reference to the target
// object at the point of suspension. What remains for Run's
// own dispatch is exactly the two cases that require action beyond the
// object the caller was already touching: a voluntary yield re-enqueues
// the caller, and a thread exit reaps its resources and wakes its
// joiners.
func (rt *Runtime) Run() {
	for rt.ths.len() > 0 && !rt.stopped {
		if e := rt.runnable.Front(); e != nil {
			rt.runnable.Remove(e)
			tid := e.Value.(uthreadID)
			u, ok := rt.ths.get(tid)
			if !ok {
				continue // exited and reaped between enqueue and dequeue
			}

			rt.self = tid
			u.sw.switchIn()
			rt.self = invalidUthread

			rt.dispatch(u)
			continue
		}

		// runnable FIFO empty: drive the I/O pump for one step, timed to
		// the nearest pending deadline (none tracked yet => block
		// indefinitely for the next readiness event).
		if err := rt.pumpOnce(-1); err != nil {
			rt.log.Error().Err(err).Msg("reactor poll failed")
			return
		}
	}
}

func (rt *Runtime) dispatch(u *Uthread) {
	switch u.ev.Kind {
	case NoneEvent:
		rt.enqueueRunnable(u.tid)

	case EndThreadNotify:
		rt.reap(u)

	case SockReadNotify, SockWriteNotify, SockConnectNotify, SockAcceptNotify,
		SockErrorNotify, SockEOFNotify, LockWaitNotify, JoinWaitNotify:
		// already parked on the relevant wait queue by the operation
		// itself before it suspended; nothing further to do here.

	default:
		rt.log.Warn().Int("event", int(u.ev.Kind)).Msg("unrecognized event kind")
	}
}

// reap finalizes an exited uthread: wakes every joiner already waiting,
// releases its stack slot and tid for reuse, and removes it from the live
// registry. The uthread's id and result stay visible in rt.exited for any
// Join that arrives after this point — a joiner calling in before the
// exited uthread's id gets reissued to a new uthread must still observe
// its status, so the record can't simply vanish here.
func (rt *Runtime) reap(u *Uthread) {
	u.exited = true
	u.status |= StatusStop
	for _, jtid := range u.joiners {
		rt.enqueueRunnable(jtid)
	}
	u.joiners = nil

	if u.cleanPrivate != nil {
		u.cleanPrivate(u.private)
	}

	rt.ths.delete(u.tid)
	rt.exited.put(u.tid, u)
	rt.stacks.release(u.slot)
	rt.tidAlloc.release(uint32(u.tid))
	rt.log.Debug().Uint32("tid", uint32(u.tid)).Msg("reaped")
}

// runFor drives Run but stops once all currently-tracked uthreads at call
// time (plus anything they transitively spawn) have exited, with a safety
// deadline; used by tests that don't want to hand-roll a stop condition.
// The deadline only sets rt.stopped, which Run checks between scheduling
// steps; a Run blocked in an indefinite reactor poll is not interrupted.
func (rt *Runtime) runFor(max time.Duration) {
	done := make(chan struct{})
	go func() {
		rt.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(max):
		rt.stopped = true
		<-done
	}
}
