package uco

import "sync"

// invalidID is the reserved zero sentinel shared by tid and lockid
// allocation, keeping 0 reserved as an invalid sentinel.
const invalidID uint32 = 0

// idAllocator issues small dense non-zero ids with reuse: alloc returns the
// smallest released id if one is pending, otherwise the next value of a
// monotonic counter. Zero is never issued. Within the runtime every uco
// entity is only ever touched by the single currently-running uthread or
// the scheduler, never both at once. The mutex serializes alloc and release
// so that an accidental call from a second OS goroutine (e.g. a host-side
// finalizer) cannot corrupt the free list.
type idAllocator struct {
	mu   sync.Mutex
	next uint32
	free []uint32
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: invalidID + 1}
}

// alloc returns a fresh id, preferring reuse of the smallest released one.
func (a *idAllocator) alloc() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		// keep free list sorted ascending so the smallest released id wins,
		// preserving the round-trip reuse property tests rely on.
		id := a.free[0]
		a.free = a.free[1:]
		return id
	}
	id := a.next
	a.next++
	return id
}

// release returns id to the free pool for future reuse. Releasing an
// already-free or never-issued id is a caller bug; it is tolerated (not
// reinserted twice) rather than crashing the runtime.
func (a *idAllocator) release(id uint32) {
	if id == invalidID {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.free {
		if f == id {
			return
		}
	}
	// insertion sort keeps free ascending; allocation volumes here are
	// small (bounded by live uthread/lock counts) so O(n) is fine.
	i := len(a.free)
	a.free = append(a.free, id)
	for i > 0 && a.free[i-1] > a.free[i] {
		a.free[i-1], a.free[i] = a.free[i], a.free[i-1]
		i--
	}
}
