package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhr91/heapkit/internal/format"
)

// carveFive splits the initial page into five 32-byte allocated blocks
// at offsets 112, 144, 176, 208, 240, leaving a 96-byte free block at
// 272. Returns the five payload refs in address order.
func carveFive(t *testing.T, h *Heap) [5]Ref {
	t.Helper()

	var refs [5]Ref
	for i := range refs {
		refs[i] = mustAlloc(t, h, 24)
	}
	require.Equal(t, [5]Ref{112, 144, 176, 208, 240}, refs, "carved layout")
	require.Equal(t, []int{272}, freeListOrder(h, 0), "96-byte spare listed")
	return refs
}

// TestFreeList_LIFOOrder verifies freed blocks are pushed at the bucket
// head and reused most-recent-first.
func TestFreeList_LIFOOrder(t *testing.T) {
	h := newTestHeap(t)
	refs := carveFive(t, h)

	require.NoError(t, h.Free(refs[0])) // 112
	require.NoError(t, h.Free(refs[2])) // 176
	assert.Equal(t, []int{176, 112, 272}, freeListOrder(h, 0), "LIFO insertion order")

	again := mustAlloc(t, h, 24)
	assert.Equal(t, refs[2], again, "most recently freed block reused first")
	assert.Equal(t, []int{112, 272}, freeListOrder(h, 0))

	assertConsistent(t, h)
}

// TestFreeList_TailUnlink verifies first fit can select and unlink the
// last entry of a list.
func TestFreeList_TailUnlink(t *testing.T) {
	h := newTestHeap(t)
	refs := carveFive(t, h)

	require.NoError(t, h.Free(refs[0]))
	require.NoError(t, h.Free(refs[2]))
	// List: 176 (32B), 112 (32B), 272 (96B). Only the tail fits 64 bytes.
	ref, _, err := h.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, Ref(272), ref, "tail entry selected")

	// The 96-byte tail splits into 72 allocated + 24 free.
	assert.Equal(t, []int{344, 176, 112}, freeListOrder(h, 0), "remainder pushed at head")

	assertConsistent(t, h)
}

// TestFreeList_BucketFiling verifies freed blocks land in the bucket
// their size maps to, across the whole bucket range.
func TestFreeList_BucketFiling(t *testing.T) {
	h := newTestHeap(t)

	requests := []int{120, 250, 600, 5000, 70000}
	refs := make([]Ref, len(requests))
	for i, n := range requests {
		refs[i] = mustAlloc(t, h, n)
		mustAlloc(t, h, 24) // spacer keeps freed neighbours apart
	}

	for i, ref := range refs {
		require.NoError(t, h.Free(ref), "free request %d", requests[i])
	}

	for i, ref := range refs {
		size, allocated := blockAt(h, int(ref))
		require.False(t, allocated, "block for request %d freed", requests[i])
		want := format.BucketIndex(size)
		assert.True(t, freeListHas(h, want, int(ref)),
			"block of size %d (request %d) filed in bucket %d", size, requests[i], want)
	}

	assertConsistent(t, h)
}

// TestFindFit_EscalatesBuckets verifies a small request is served from a
// higher bucket when its own bucket is empty.
func TestFindFit_EscalatesBuckets(t *testing.T) {
	h := newTestHeap(t)

	// The only free block is the initial page, two buckets up from where
	// a 32-byte request starts looking.
	ref := mustAlloc(t, h, 24)
	assert.Equal(t, Ref(format.FirstBlockOff), ref)

	assertConsistent(t, h)
}
