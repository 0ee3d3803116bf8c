package uco

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDAllocatorMonotonic(t *testing.T) {
	a := newIDAllocator()
	require.Equal(t, uint32(1), a.alloc())
	require.Equal(t, uint32(2), a.alloc())
	require.Equal(t, uint32(3), a.alloc())
}

func TestIDAllocatorReusesSmallestReleased(t *testing.T) {
	a := newIDAllocator()
	ids := []uint32{a.alloc(), a.alloc(), a.alloc(), a.alloc()} // 1,2,3,4

	a.release(ids[2]) // release 3
	a.release(ids[1]) // release 2

	require.Equal(t, uint32(2), a.alloc())
	require.Equal(t, uint32(3), a.alloc())
	require.Equal(t, uint32(5), a.alloc())
}

func TestIDAllocatorNeverIssuesZero(t *testing.T) {
	a := newIDAllocator()
	for i := 0; i < 100; i++ {
		require.NotEqual(t, invalidID, a.alloc())
	}
}

func TestIDAllocatorReleaseIsIdempotent(t *testing.T) {
	a := newIDAllocator()
	id := a.alloc()
	a.release(id)
	a.release(id)
	require.Len(t, a.free, 1)
}

func TestIDAllocatorReleaseZeroIgnored(t *testing.T) {
	a := newIDAllocator()
	a.release(invalidID)
	require.Empty(t, a.free)
}
