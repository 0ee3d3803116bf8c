package uco

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackBucketAcquireReleaseRoundTrip(t *testing.T) {
	b := newStackBucket(4, 64*1024)

	s1 := b.acquire(uthreadID(1))
	require.NotNil(t, s1)
	require.Equal(t, uthreadID(1), s1.owningTid)
	require.Equal(t, 1, b.live())

	b.release(s1)
	require.Equal(t, 0, b.live())
	require.Equal(t, invalidUthread, s1.owningTid)
}

func TestStackBucketGrowsNewRegionOnExhaustion(t *testing.T) {
	b := newStackBucket(2, 4096)

	s1 := b.acquire(uthreadID(1))
	s2 := b.acquire(uthreadID(2))
	require.Len(t, b.regions, 1)

	// first region (size 2) is now full; a third acquire must grow a
	// second region rather than fail.
	s3 := b.acquire(uthreadID(3))
	require.Len(t, b.regions, 2)
	require.Equal(t, 3, b.live())

	b.release(s1)
	b.release(s2)
	b.release(s3)
	require.Equal(t, 0, b.live())
}

func TestStackBucketReusesFreedSlotsWithinARegion(t *testing.T) {
	b := newStackBucket(8, 4096)

	first := b.acquire(uthreadID(1))
	b.release(first)

	second := b.acquire(uthreadID(2))
	require.Equal(t, 1, b.live())
	require.Len(t, b.regions, 1, "reusing a freed slot must not grow a new region")
	_ = second
}

func TestStackBucketDefaultsRegionSize(t *testing.T) {
	b := newStackBucket(0, 4096)
	require.Equal(t, 256, b.regionSize)
}
