package uco

import "fmt"

// statusBit is the uthread/socket status bitset.
type statusBit uint32

const (
	StatusRead statusBit = 1 << iota
	StatusWrite
	StatusWaitConnect
	StatusWaitAccept
	StatusSockEOF
	StatusSockError
	StatusWaitJoin
	StatusStop
)

func (s statusBit) has(bit statusBit) bool { return s&bit != 0 }

// Uthread is a suspended or runnable coroutine.
type Uthread struct {
	rt   *Runtime
	tid  uthreadID
	sw   *switcher
	slot *stackSlot

	entry func(arg any) any
	arg   any

	status  statusBit
	pending uthreadID // joinee, if WAIT_JOIN
	ev      coroEvent

	// ioResult/ioErr are scratch slots a blocking socket operation
	// reads immediately after switchOut returns, written by whichever
	// handler (running on the scheduler's call stack) woke this uthread.
	// This is the channel by which "the coroutine that completed the
	// operation" hands data to a uthread parked on a different goroutine,
	// since the two never touch shared memory concurrently (only one of
	// them runs at a time).
	ioResult any
	ioErr    error

	exited   bool
	result   any
	joiners  []uthreadID // parked waiting to join this uthread

	private      any
	cleanPrivate func(any)
}

// Tid returns the dense non-zero identifier of u.
func (u *Uthread) Tid() uint32 { return uint32(u.tid) }

// spawn allocates a tid and stack slot, registers the uthread, starts its
// backing goroutine (blocked until first resume) and enqueues it runnable.
func (rt *Runtime) spawn(entry func(arg any) any, arg any) (*Uthread, error) {
	if rt.stopped {
		return nil, ErrRuntimeClosed
	}

	tid := uthreadID(rt.tidAlloc.alloc())
	slot := rt.stacks.acquire(tid)
	if slot == nil {
		rt.tidAlloc.release(uint32(tid))
		return nil, ErrStackExhausted
	}

	u := &Uthread{
		rt:    rt,
		tid:   tid,
		sw:    newSwitcher(),
		slot:  slot,
		entry: entry,
		arg:   arg,
	}
	// this tid may belong to a reaped-but-not-yet-joined uthread; a fresh
	// spawn means no further Join can reach that old record, so drop it.
	rt.exited.delete(tid)
	rt.ths.put(tid, u)

	go u.trampoline()

	rt.enqueueRunnable(tid)
	rt.log.Debug().Uint32("tid", uint32(tid)).Msg("spawned")
	return u, nil
}

// trampoline is the goroutine body backing a uthread: block for the first
// resume, run the entry function, then publish EndThreadNotify and hand
// control back one last time; the goroutine then returns (the scheduler
// never resumes an exited uthread).
func (u *Uthread) trampoline() {
	<-u.sw.resume
	u.result = u.entry(u.arg)
	u.ev = coroEvent{Kind: EndThreadNotify, Tid: u.tid}
	u.sw.suspend <- struct{}{}
}

// Yield publishes a voluntary NoneEvent and returns control to the
// scheduler, which re-enqueues the caller at the tail of the runnable FIFO.
func Yield() {
	rt := currentRuntime()
	u := rt.selfUthread()
	u.ev = coroEvent{Kind: NoneEvent}
	u.sw.switchOut()
}

// Current returns the tid of the currently-running uthread.
func Current() uint32 {
	return uint32(currentRuntime().self)
}

// Spawn starts entry(arg) as a new uthread on the given runtime and returns
// its tid.
func (rt *Runtime) Spawn(entry func(arg any) any, arg any) (uint32, error) {
	u, err := rt.spawn(entry, arg)
	if err != nil {
		return 0, err
	}
	return uint32(u.tid), nil
}

// Join blocks the calling uthread until target has exited, returning its
// result. If target has already exited — whether still tracked as a live
// uthread or already reaped — Join returns immediately.
func (rt *Runtime) Join(target uint32) (any, error) {
	tid := uthreadID(target)
	tu, ok := rt.ths.get(tid)
	if !ok {
		if eu, ok := rt.exited.get(tid); ok {
			return eu.result, nil
		}
		return nil, ErrNoSuchUthread
	}
	if tu.exited {
		return tu.result, nil
	}

	self := rt.selfUthread()
	self.status |= StatusWaitJoin
	self.pending = tid
	tu.joiners = append(tu.joiners, self.tid)
	self.ev = coroEvent{Kind: JoinWaitNotify, Tid: tid}
	self.sw.switchOut()

	// resumed: target must have exited by construction of the dispatch in
	// scheduler.go, which only wakes a joiner after recording the result.
	self.status &^= StatusWaitJoin
	return tu.result, nil
}

// SetPrivateData attaches host-defined data to the live uthread tid, with an
// optional cleanup invoked when the uthread exits and is reaped.
func (rt *Runtime) SetPrivateData(tid uint32, data any, clean func(any)) error {
	u, ok := rt.ths.get(uthreadID(tid))
	if !ok {
		return ErrInvalidTid
	}
	u.private = data
	u.cleanPrivate = clean
	return nil
}

// PrivateData returns data most recently set via SetPrivateData for tid.
func (rt *Runtime) PrivateData(tid uint32) (any, error) {
	u, ok := rt.ths.get(uthreadID(tid))
	if !ok {
		return nil, ErrInvalidTid
	}
	return u.private, nil
}

func (u *Uthread) String() string {
	if u.status.has(StatusWaitJoin) {
		return fmt.Sprintf("uthread{tid=%d status=%#x waiting_on=%d}", u.tid, u.status, u.pending)
	}
	return fmt.Sprintf("uthread{tid=%d status=%#x}", u.tid, u.status)
}
