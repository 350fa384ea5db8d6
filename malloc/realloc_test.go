package malloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRealloc_GrowsInPlaceViaCoalesce verifies a resize into adjacent
// free space keeps the block where it is and preserves the payload.
func TestRealloc_GrowsInPlaceViaCoalesce(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(100)
	require.NoError(t, err)
	fillPattern(buf, 7)

	ref2, buf2, err := h.Realloc(ref, 200)
	require.NoError(t, err)
	assert.Equal(t, ref, ref2, "grew into the adjacent free block")
	assert.Len(t, buf2, 200)
	checkPattern(t, buf2[:len(buf)], 7)

	size, allocated := blockAt(h, int(ref2))
	assert.Equal(t, 208, size)
	assert.True(t, allocated)

	assertConsistent(t, h)
}

// TestRealloc_RelocatesWhenBlocked verifies a resize moves the payload
// when a live neighbour prevents growing in place, and that the old
// block is released.
func TestRealloc_RelocatesWhenBlocked(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(100)
	require.NoError(t, err)
	fillPattern(buf, 3)

	spacer, spacerBuf, err := h.Alloc(24)
	require.NoError(t, err)
	fillPattern(spacerBuf, 0x40)

	ref2, buf2, err := h.Realloc(ref, 200)
	require.NoError(t, err)
	assert.NotEqual(t, ref, ref2, "blocked block had to move")
	checkPattern(t, buf2[:len(buf)], 3)

	_, allocated := blockAt(h, int(ref))
	assert.False(t, allocated, "old block released")
	assert.True(t, freeListHas(h, 0, int(ref)))

	kept, err := h.Payload(spacer)
	require.NoError(t, err)
	checkPattern(t, kept[:24], 0x40)

	assertConsistent(t, h)
}

// TestRealloc_Shrink verifies shrinking keeps the payload prefix and
// returns the spare space to the heap.
func TestRealloc_Shrink(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(200)
	require.NoError(t, err)
	fillPattern(buf, 9)

	ref2, buf2, err := h.Realloc(ref, 50)
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
	assert.Len(t, buf2, 56)
	checkPattern(t, buf2, 9)

	size, allocated := blockAt(h, int(ref2))
	assert.Equal(t, 64, size)
	assert.True(t, allocated)

	assertConsistent(t, h)
}

// TestRealloc_GrowthPreservesData verifies the payload survives a resize
// that forces the arena itself to grow.
func TestRealloc_GrowthPreservesData(t *testing.T) {
	if testing.Short() {
		t.Skip("large arena")
	}
	h := newTestHeap(t)

	ref, buf, err := h.Alloc(100)
	require.NoError(t, err)
	fillPattern(buf, 5)
	mustAlloc(t, h, 24) // pin the block so the resize must relocate

	ref2, buf2, err := h.Realloc(ref, 70000)
	require.NoError(t, err)
	assert.NotEqual(t, ref, ref2)
	assert.GreaterOrEqual(t, len(buf2), 70000)
	checkPattern(t, buf2[:len(buf)], 5)
	assert.Equal(t, 2, h.Stats().GrowCalls)

	assertConsistent(t, h)
}

// TestRealloc_GrowthFailureFreesBlock verifies a resize that cannot grow
// the arena returns ErrNoSpace with the old block already released, as
// documented: the reference is dead even though the call failed.
func TestRealloc_GrowthFailureFreesBlock(t *testing.T) {
	h := newTestHeap(t, WithLimit(400))

	ref, buf, err := h.Alloc(100)
	require.NoError(t, err)
	fillPattern(buf, 6)

	// Needs a 312-byte block; the capped arena cannot fit one.
	_, _, err = h.Realloc(ref, 300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSpace))
	assert.Equal(t, 368, h.Len(), "arena did not grow")

	_, err = h.Payload(ref)
	assert.True(t, errors.Is(err, ErrBadRef), "old reference is dead after the failure")

	size, allocated := blockAt(h, 112)
	assert.Equal(t, 256, size, "freed block re-merged with its neighbour")
	assert.False(t, allocated)

	assertConsistent(t, h)
}

// TestRealloc_NilRefAllocates verifies resizing the null reference is a
// plain allocation.
func TestRealloc_NilRefAllocates(t *testing.T) {
	h := newTestHeap(t)

	ref, buf, err := h.Realloc(NilRef, 100)
	require.NoError(t, err)
	assert.Equal(t, Ref(112), ref)
	assert.Len(t, buf, 104)

	assertConsistent(t, h)
}

// TestRealloc_ZeroFrees verifies resizing to zero releases the block.
func TestRealloc_ZeroFrees(t *testing.T) {
	h := newTestHeap(t)

	ref := mustAlloc(t, h, 100)
	ref2, buf2, err := h.Realloc(ref, 0)
	require.NoError(t, err)
	assert.Equal(t, NilRef, ref2)
	assert.Nil(t, buf2)

	size, allocated := blockAt(h, 112)
	assert.Equal(t, 256, size, "block freed and re-merged")
	assert.False(t, allocated)

	assertConsistent(t, h)
}

// TestRealloc_BadInputs verifies invalid references and sizes are
// rejected without touching the arena.
func TestRealloc_BadInputs(t *testing.T) {
	h := newTestHeap(t)
	ref := mustAlloc(t, h, 100)

	_, _, err := h.Realloc(Ref(50), 10)
	assert.True(t, errors.Is(err, ErrBadRef))

	_, _, err = h.Realloc(ref, -1)
	assert.True(t, errors.Is(err, ErrBadSize))

	buf, err := h.Payload(ref)
	require.NoError(t, err)
	assert.Len(t, buf, 104, "block untouched by rejected calls")

	assertConsistent(t, h)
}
