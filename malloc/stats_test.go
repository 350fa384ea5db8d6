package malloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStats_CounterSemantics runs one operation of each kind and checks
// every counter it should have moved.
func TestStats_CounterSemantics(t *testing.T) {
	h := newTestHeap(t)

	ref := mustAlloc(t, h, 100)
	require.NoError(t, h.Free(ref))
	_, _, err := h.Realloc(NilRef, 10)
	require.NoError(t, err)
	_, _, err = h.Calloc(2, 8)
	require.NoError(t, err)

	st := h.Stats()
	assert.Equal(t, 3, st.AllocCalls, "alloc, realloc and calloc all allocate")
	assert.Equal(t, 1, st.FreeCalls)
	assert.Equal(t, 1, st.ReallocCalls)
	assert.Equal(t, 1, st.CallocCalls)
	assert.Equal(t, 1, st.GrowCalls)
	assert.Equal(t, int64(256), st.GrowBytes)
	assert.Equal(t, 3, st.SplitCount)
	assert.Equal(t, 1, st.CoalesceCount)
	// 112 for the first allocation, then 24 each for the 10-byte and
	// 16-byte requests once tags and alignment are added.
	assert.Equal(t, int64(160), st.BytesAllocated)
	assert.Equal(t, int64(112), st.BytesFreed)
	assert.Equal(t, int64(48), st.LiveBytes())
}

// TestStats_CountersTrackCalls verifies rejected and no-op calls still
// count as calls while the byte totals stay put.
func TestStats_CountersTrackCalls(t *testing.T) {
	h := newTestHeap(t)

	_, _, err := h.Alloc(0)
	require.NoError(t, err)
	_, _, err = h.Alloc(-5)
	require.Error(t, err)
	require.NoError(t, h.Free(NilRef))
	require.Error(t, h.Free(Ref(50)))

	st := h.Stats()
	assert.Equal(t, 2, st.AllocCalls)
	assert.Equal(t, 2, st.FreeCalls)
	assert.Zero(t, st.BytesAllocated)
	assert.Zero(t, st.BytesFreed)
	assert.Zero(t, st.LiveBytes())
}

// TestUsage_TalliesChain verifies the walked accounting against a known
// layout.
func TestUsage_TalliesChain(t *testing.T) {
	h := newTestHeap(t)
	mustAlloc(t, h, 100)
	mustAlloc(t, h, 24)

	u, err := h.Usage()
	require.NoError(t, err)
	assert.Equal(t, Usage{
		ArenaBytes:      368,
		AllocatedBytes:  144,
		FreeBytes:       112,
		AllocatedBlocks: 2,
		FreeBlocks:      1,
		LargestFree:     112,
	}, u)
}

// TestUsage_Closed verifies accounting a closed heap fails cleanly.
func TestUsage_Closed(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.Usage()
	assert.True(t, errors.Is(err, ErrClosed))
}
