package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBestFit_LastBucketPicksSmallest verifies the final bucket is
// searched best-fit rather than first-fit. Two free blocks live there,
// with the larger one at the list head; the request must land on the
// smaller one.
func TestBestFit_LastBucketPicksSmallest(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-megabyte arena")
	}
	h := newTestHeap(t)

	a := mustAlloc(t, h, 66000)
	mustAlloc(t, h, 24) // spacer
	c := mustAlloc(t, h, 131000)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c)) // freed last, so it heads the list

	sizeA, _ := blockAt(h, int(a))
	sizeC, _ := blockAt(h, int(c))
	require.Less(t, sizeA, sizeC)

	got, buf, err := h.Alloc(65000)
	require.NoError(t, err)
	assert.Equal(t, a, got, "smaller block wins over the list head")
	assert.GreaterOrEqual(t, len(buf), 65000)

	assertConsistent(t, h)
}

// TestBestFit_TieKeepsFirst verifies that among equally sized candidates
// the one encountered first is kept.
func TestBestFit_TieKeepsFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-megabyte arena")
	}
	h := newTestHeap(t)

	a1 := mustAlloc(t, h, 66000)
	mustAlloc(t, h, 24)
	a2 := mustAlloc(t, h, 66000)
	mustAlloc(t, h, 24)

	require.NoError(t, h.Free(a1))
	require.NoError(t, h.Free(a2))

	sizeA1, _ := blockAt(h, int(a1))
	sizeA2, _ := blockAt(h, int(a2))
	require.Equal(t, sizeA1, sizeA2, "candidates tie on size")

	got, _, err := h.Alloc(65000)
	require.NoError(t, err)
	assert.Equal(t, a2, got, "head of the list encountered first on a tie")

	assertConsistent(t, h)
}

// TestBestFit_SmallRequestsStayFirstFit verifies lower buckets keep
// first-fit behaviour even when a tighter fit sits deeper in the list.
func TestBestFit_SmallRequestsStayFirstFit(t *testing.T) {
	h := newTestHeap(t)
	refs := carveFive(t, h)

	// Cycle the 96-byte spare through an allocation so it can be freed
	// after one of the 32-byte blocks and end up at the list head.
	spare := mustAlloc(t, h, 88)
	require.Equal(t, Ref(272), spare)
	require.Empty(t, freeListOrder(h, 0))

	require.NoError(t, h.Free(refs[2]))
	require.NoError(t, h.Free(spare))
	require.Equal(t, []int{272, 176}, freeListOrder(h, 0))

	got := mustAlloc(t, h, 16)
	assert.Equal(t, spare, got, "head served even though a tighter fit sits behind it")

	assertConsistent(t, h)
}
