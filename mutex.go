package uco

import "container/list"

// CoroLock is the cooperative mutex: non-recursive, with a
// FIFO wait queue and direct ownership handoff on unlock.
type CoroLock struct {
	id    lockID
	owner uthreadID
	wait  *list.List // of uthreadID
}

// NewLock allocates a lock id and object.
func (rt *Runtime) NewLock() uint32 {
	id := lockID(rt.lockAlloc.alloc())
	rt.locks.put(id, &CoroLock{id: id, owner: invalidUthread, wait: list.New()})
	return uint32(id)
}

// Lock acquires l, blocking the calling uthread if it's already held.
// Calling Lock from the scheduler's own call stack (no uthread running) is
// a fatal invariant violation.
func (rt *Runtime) Lock(id uint32) error {
	l, ok := rt.locks.get(lockID(id))
	if !ok {
		return ErrInvalidLockID
	}
	if rt.self == invalidUthread {
		panic(ErrFromScheduler)
	}
	self := rt.selfUthread()

	if l.owner == self.tid {
		return ErrRecursiveLock
	}
	if l.owner == invalidUthread {
		l.owner = self.tid
		return nil
	}

	l.wait.PushBack(self.tid)
	self.ev = coroEvent{Kind: LockWaitNotify, Lock: l.id}
	self.sw.switchOut()
	// a lock waiter is only made runnable after becoming the new owner
	// (see handoffLock, called by Unlock) — no re-race here.
	return nil
}

// Unlock releases l. Only the current owner may call it. Unlock is not a
// suspension point: only Lock blocks. The FIFO handoff to the next waiter
// is executed synchronously here rather than via an actual context switch,
// since it requires no blocking I/O or ownership wait of its own — the
// effect on the lock's wait queue and the runnable FIFO is identical
// either way.
func (rt *Runtime) Unlock(id uint32) error {
	l, ok := rt.locks.get(lockID(id))
	if !ok {
		return ErrInvalidLockID
	}
	self := rt.selfUthread()
	if l.owner != self.tid {
		return ErrNotOwner
	}
	l.owner = invalidUthread
	rt.handoffLock(l)
	return nil
}

// handoffLock pops the head of l's wait queue (if any) and makes it the new
// owner, enqueueing it runnable.
func (rt *Runtime) handoffLock(l *CoroLock) {
	front := l.wait.Front()
	if front == nil {
		return
	}
	tid := front.Value.(uthreadID)
	l.wait.Remove(front)
	l.owner = tid
	rt.enqueueRunnable(tid)
}

// Release destroys a lock. Only permitted while unheld.
func (rt *Runtime) Release(id uint32) error {
	l, ok := rt.locks.get(lockID(id))
	if !ok {
		return ErrInvalidLockID
	}
	if l.owner != invalidUthread {
		return ErrLockHeld
	}
	rt.locks.delete(l.id)
	rt.lockAlloc.release(uint32(l.id))
	return nil
}
