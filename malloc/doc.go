// Package malloc implements a general-purpose dynamic-memory allocator
// over a single growable byte arena.
//
// # Overview
//
// A Heap services allocate, free, resize, and zeroed-allocate requests
// using boundary-tag blocks and eleven segregated free lists. Freed
// neighbours are coalesced immediately, so the arena never contains two
// adjacent free blocks. The arena grows append-only in 256-byte pages and
// never relocates, which means payload slices handed out by Alloc stay
// valid until the block is freed or the heap is closed.
//
// # Heap layout
//
// The arena opens with a fixed 112-byte preamble:
//
//	Offset  Size  Description
//	0       8     alignment padding
//	8       88    11 bucket-head slots, one word each (0 = empty bucket)
//	96      8     prologue header (second half unused)
//	104     8     epilogue header + prologue footer
//
// The prologue is an allocated sentinel of fixed size 8 and the epilogue
// an allocated sentinel of size 0; together they terminate boundary-tag
// traversal in both directions. The first real payload begins at offset
// 112 and the epilogue header is rewritten at the end of every growth.
//
// # Block layout
//
// A block of total size S with payload at offset p stores a packed
// (size, allocated) tag twice: in the half-word at p-8 (header) and the
// half-word at p+S-4 (footer). The header of one block and the footer of
// its predecessor share a single 8-byte word. Total sizes are multiples
// of 8 and never below 16. While a block is free, its first payload word
// holds its successor and predecessor offsets in the free list; allocated
// blocks use every payload byte.
//
// # Allocation policy
//
// Bucket i holds free blocks with sizes in [2^(6+i), 2^(7+i)); the first
// bucket also absorbs smaller sizes and the last catches everything from
// 65536 up. Buckets below the last are searched first-fit, the last
// best-fit. Insertion is always at the bucket head. Placement splits the
// chosen block when the remainder can stand as a block of its own
// (at least 16 bytes); otherwise the whole block is handed out.
//
// # References
//
// A Ref is the arena-relative offset of a payload, always 8-byte aligned.
// NilRef (zero) is the null reference: Free(NilRef) is a no-op and
// Alloc(0) returns NilRef without error.
//
// # Usage
//
//	h, err := malloc.New()
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
//	ref, buf, err := h.Alloc(256)
//	if err != nil {
//		return err
//	}
//	copy(buf, payload)
//
//	ref, buf, err = h.Realloc(ref, 512)
//	...
//	err = h.Free(ref)
//
// # Diagnostics
//
// Check runs the structural validator in package verify against the
// current arena and reports the first violated invariant. It is a testing
// and debugging oracle; allocation paths never call it. Set
// HEAPKIT_LOG_ALLOC to any value to trace allocation-path events on
// stderr.
//
// # Thread safety
//
// A Heap is not safe for concurrent use. Callers that share one heap
// across goroutines must serialize every entry point, the checker
// included, with an external lock.
package malloc
