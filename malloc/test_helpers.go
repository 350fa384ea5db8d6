package malloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yhr91/heapkit/internal/format"
	"github.com/yhr91/heapkit/malloc/verify"
)

// ============================================================================
// Heap Setup Utilities
// ============================================================================

// newTestHeap creates a heap with the given options and registers cleanup.
func newTestHeap(t testing.TB, opts ...Option) *Heap {
	t.Helper()

	h, err := New(opts...)
	require.NoError(t, err, "failed to create heap")

	t.Cleanup(func() { h.Close() })

	return h
}

// mustAlloc allocates n bytes or fails the test.
func mustAlloc(t testing.TB, h *Heap, n int) Ref {
	t.Helper()

	ref, _, err := h.Alloc(n)
	require.NoError(t, err, "Alloc(%d) failed", n)
	require.NotEqual(t, NilRef, ref, "Alloc(%d) returned NilRef", n)

	return ref
}

// ============================================================================
// Arena Inspection
// ============================================================================

// blockAt reads the boundary tag of the block whose payload starts at off.
func blockAt(h *Heap, off int) (size int, allocated bool) {
	tag := format.Header(h.Bytes(), off)
	return format.Size(tag), format.Allocated(tag)
}

// freeListLen returns the number of entries in bucket i.
func freeListLen(h *Heap, i int) int {
	data := h.Bytes()
	n := 0
	for off := format.BucketHead(data, i); off != 0; off = format.LinkNext(data, off) {
		n++
	}
	return n
}

// freeListHas reports whether bucket i lists the payload offset off.
func freeListHas(h *Heap, i, off int) bool {
	data := h.Bytes()
	for cur := format.BucketHead(data, i); cur != 0; cur = format.LinkNext(data, cur) {
		if cur == off {
			return true
		}
	}
	return false
}

// freeListOrder returns bucket i's entries from head to tail.
func freeListOrder(h *Heap, i int) []int {
	data := h.Bytes()
	var order []int
	for off := format.BucketHead(data, i); off != 0; off = format.LinkNext(data, off) {
		order = append(order, off)
	}
	return order
}

// ============================================================================
// Payload Patterns
// ============================================================================

// fillPattern writes a deterministic byte pattern derived from seed.
func fillPattern(buf []byte, seed byte) {
	for i := range buf {
		buf[i] = seed + byte(i)
	}
}

// checkPattern verifies a pattern written by fillPattern.
func checkPattern(t testing.TB, buf []byte, seed byte) {
	t.Helper()

	for i := range buf {
		if buf[i] != seed+byte(i) {
			t.Fatalf("payload byte %d: got 0x%02X, want 0x%02X", i, buf[i], seed+byte(i))
		}
	}
}

// ============================================================================
// Invariant Checking
// ============================================================================

// assertConsistent runs the full validator and fails on the first violation.
func assertConsistent(t testing.TB, h *Heap) {
	t.Helper()

	require.NoError(t, verify.AllInvariants(h.Bytes()), "arena invariants violated")
}
