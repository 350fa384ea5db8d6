package malloc

import (
	"errors"
	"fmt"
	"os"

	"github.com/yhr91/heapkit/internal/format"
	"github.com/yhr91/heapkit/internal/memsys"
	"github.com/yhr91/heapkit/malloc/verify"
)

// Runtime debug flag for allocation logging - controlled by HEAPKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Ref is an arena-relative payload offset. NilRef is the null reference;
// no real payload can sit below the preamble.
type Ref = uint32

// NilRef is the zero reference returned for empty allocations and
// accepted as a no-op by Free.
const NilRef Ref = 0

// Heap is a dynamic-memory allocator over one growable arena. It is not
// safe for concurrent use.
type Heap struct {
	region *memsys.Region
	data   []byte // committed arena bytes, refreshed after every growth

	stats Stats

	// Test hook: called with the byte count before each growth (nil in production).
	onGrow func(int)
}

// Option configures New.
type Option func(*config)

type config struct {
	limit int
}

// WithLimit caps the arena reservation at n bytes. The heap can never
// grow past it. Zero selects the memsys default.
func WithLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}

// New creates an initialized heap: preamble written, bucket heads empty,
// sentinels in place, and one initial page of free space.
func New(opts ...Option) (*Heap, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	region, err := memsys.Reserve(cfg.limit)
	if err != nil {
		return nil, err
	}
	h := &Heap{region: region}
	if err := h.init(); err != nil {
		region.Close()
		return nil, err
	}
	return h, nil
}

// init lays down the metadata preamble and performs the initial growth.
func (h *Heap) init() error {
	if _, err := h.region.Extend(format.PreambleSize); err != nil {
		return fmt.Errorf("malloc: preamble: %w", err)
	}
	h.data = h.region.Bytes()
	for i := 0; i < format.NumBuckets; i++ {
		format.SetBucketHead(h.data, i, 0)
	}
	// Prologue: a fixed 8-byte allocated sentinel. Its footer lands in the
	// same word as the epilogue header.
	prologue := format.Pack(format.WordSize, true)
	format.PutHeader(h.data, format.PrologueOff, prologue)
	format.PutFooter(h.data, format.PrologueOff, prologue)
	// Epilogue: a zero-size allocated sentinel, rewritten by every growth.
	format.PutHeader(h.data, format.FirstBlockOff, format.Pack(0, true))

	if _, err := h.extend(format.PageSize / format.WordSize); err != nil {
		return fmt.Errorf("malloc: initial page: %w", err)
	}
	return nil
}

// extend grows the arena by the given number of words, rounded up to an
// even count so the region end stays 8-byte aligned. The fresh bytes are
// stamped as one free block, the old epilogue header becoming its header,
// and a new epilogue is written after it. Returns the (possibly merged)
// free block holding the new space.
func (h *Heap) extend(words int) (int, error) {
	if words%2 != 0 {
		words++
	}
	size := words * format.WordSize
	if h.onGrow != nil {
		h.onGrow(size)
	}
	off, err := h.region.Extend(size)
	if err != nil {
		return 0, fmt.Errorf("malloc: grow: %w", err)
	}
	h.data = h.region.Bytes()
	h.stats.GrowCalls++
	h.stats.GrowBytes += int64(size)
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[GROW] +%d bytes, arena now %d\n", size, len(h.data))
	}

	free := format.Pack(size, false)
	format.PutHeader(h.data, off, free)
	format.PutFooter(h.data, off, free)
	format.PutHeader(h.data, off+size, format.Pack(0, true))
	return h.coalesce(off), nil
}

// adjustSize converts a requested payload size to the block size the
// layout needs: header and footer add one word, the total is rounded up
// to 8 bytes, and no block is smaller than MinBlockSize.
func adjustSize(n int) int {
	if n <= format.WordSize {
		return format.MinBlockSize
	}
	return format.Align8(n + format.WordSize)
}

// Alloc returns a reference to a payload of at least n bytes together
// with the payload slice. n == 0 yields NilRef and no error. The slice
// aliases the arena and stays valid until the block is freed or the heap
// closed.
func (h *Heap) Alloc(n int) (Ref, []byte, error) {
	h.stats.AllocCalls++
	if h.data == nil {
		return NilRef, nil, ErrClosed
	}
	if n < 0 {
		return NilRef, nil, fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	if n == 0 {
		return NilRef, nil, nil
	}

	asize := adjustSize(n)
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[ALLOC] request %d -> block %d\n", n, asize)
	}

	off := h.findFit(asize)
	if off == 0 {
		grow := asize
		if grow < format.PageSize {
			grow = format.PageSize
		}
		var err error
		off, err = h.extend(grow / format.WordSize)
		if err != nil {
			return NilRef, nil, fmt.Errorf("%w (%v)", ErrNoSpace, err)
		}
	}
	h.place(off, asize)
	return Ref(off), h.payload(off), nil
}

// place removes the free block at off from its bucket and allocates
// asize bytes of it, splitting off the remainder when it can stand as a
// block of its own.
func (h *Heap) place(off, asize int) {
	size := format.Size(format.Header(h.data, off))
	h.removeFree(off)

	if size-asize >= format.MinBlockSize {
		h.stats.SplitCount++
		h.stats.BytesAllocated += int64(asize)
		used := format.Pack(asize, true)
		format.PutHeader(h.data, off, used)
		format.PutFooter(h.data, off, used)

		rem := off + asize
		left := format.Pack(size-asize, false)
		format.PutHeader(h.data, rem, left)
		format.PutFooter(h.data, rem, left)
		h.insertFree(rem)
		if logAlloc {
			fmt.Fprintf(os.Stderr, "[SPLIT] block at %d: %d -> %d + %d\n", off, size, asize, size-asize)
		}
		return
	}

	h.stats.BytesAllocated += int64(size)
	used := format.Pack(size, true)
	format.PutHeader(h.data, off, used)
	format.PutFooter(h.data, off, used)
}

// Free releases the block at ref. Free(NilRef) is a no-op. The freed
// block is merged with any free neighbour before being listed for reuse.
func (h *Heap) Free(ref Ref) error {
	h.stats.FreeCalls++
	if h.data == nil {
		return ErrClosed
	}
	if ref == NilRef {
		return nil
	}
	off := int(ref)
	if err := h.checkRef(off); err != nil {
		return err
	}

	size := format.Size(format.Header(h.data, off))
	h.stats.BytesFreed += int64(size)
	free := format.Pack(size, false)
	format.PutHeader(h.data, off, free)
	format.PutFooter(h.data, off, free)
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[FREE] block at %d, %d bytes\n", off, size)
	}
	h.coalesce(off)
	return nil
}

// coalesce merges the free block at off with free neighbours, inserts
// the merged block into its bucket, and returns its payload offset. The
// merged block always keeps the lower address. The sentinels bound the
// merge: both read as allocated.
func (h *Heap) coalesce(off int) int {
	prevFree := !format.Allocated(format.ReadU32(h.data, off-format.TagWidth))
	next := format.NextBlock(h.data, off)
	nextFree := !format.Allocated(format.Header(h.data, next))
	size := format.Size(format.Header(h.data, off))

	switch {
	case !prevFree && !nextFree:
		// Nothing to merge.

	case !prevFree && nextFree:
		h.stats.CoalesceCount++
		h.removeFree(next)
		size += format.Size(format.Header(h.data, next))
		merged := format.Pack(size, false)
		format.PutHeader(h.data, off, merged)
		format.PutFooter(h.data, off, merged)

	case prevFree && !nextFree:
		h.stats.CoalesceCount++
		prev := format.PrevBlock(h.data, off)
		h.removeFree(prev)
		size += format.Size(format.Header(h.data, prev))
		off = prev
		merged := format.Pack(size, false)
		format.PutHeader(h.data, off, merged)
		format.PutFooter(h.data, off, merged)

	default:
		h.stats.CoalesceCount++
		prev := format.PrevBlock(h.data, off)
		h.removeFree(prev)
		h.removeFree(next)
		size += format.Size(format.Header(h.data, prev)) + format.Size(format.Header(h.data, next))
		off = prev
		merged := format.Pack(size, false)
		format.PutHeader(h.data, off, merged)
		format.PutFooter(h.data, off, merged)
	}

	h.insertFree(off)
	return off
}

// Realloc resizes the block at ref to hold at least n bytes, preserving
// the common prefix of the payload. Realloc(NilRef, n) allocates and
// Realloc(ref, 0) frees. The returned reference may differ from ref. On
// growth failure ErrNoSpace is returned and the old block stays freed;
// ref is no longer valid.
func (h *Heap) Realloc(ref Ref, n int) (Ref, []byte, error) {
	h.stats.ReallocCalls++
	if h.data == nil {
		return NilRef, nil, ErrClosed
	}
	if n < 0 {
		return NilRef, nil, fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	if n == 0 {
		if err := h.Free(ref); err != nil {
			return NilRef, nil, err
		}
		return NilRef, nil, nil
	}
	if ref == NilRef {
		return h.Alloc(n)
	}

	old := int(ref)
	if err := h.checkRef(old); err != nil {
		return NilRef, nil, err
	}
	asize := adjustSize(n)
	oldSize := format.Size(format.Header(h.data, old))

	// Freeing installs list links in the first payload word, so save it
	// before the block goes onto a list.
	var saved [format.WordSize]byte
	copy(saved[:], h.data[old:old+format.WordSize])

	h.stats.BytesFreed += int64(oldSize)
	free := format.Pack(oldSize, false)
	format.PutHeader(h.data, old, free)
	format.PutFooter(h.data, old, free)
	h.coalesce(old)

	dst := h.findFit(asize)
	if dst == 0 {
		grow := asize
		if grow < format.PageSize {
			grow = format.PageSize
		}
		var err error
		dst, err = h.extend(grow / format.WordSize)
		if err != nil {
			return NilRef, nil, fmt.Errorf("%w (%v)", ErrNoSpace, err)
		}
	}

	// Copy the payload tail while dst is still free: place needs the
	// destination's link word intact, and the saved head word goes in
	// last. copy handles the overlapping ranges.
	keep := asize
	if oldSize < asize {
		keep = oldSize
	}
	keep -= format.WordSize
	copy(h.data[dst+format.WordSize:dst+keep], h.data[old+format.WordSize:old+keep])
	h.place(dst, asize)
	copy(h.data[dst:dst+format.WordSize], saved[:])

	return Ref(dst), h.payload(dst), nil
}

// Calloc allocates count*size bytes and zero-fills them.
func (h *Heap) Calloc(count, size int) (Ref, []byte, error) {
	h.stats.CallocCalls++
	if h.data == nil {
		return NilRef, nil, ErrClosed
	}
	if count < 0 || size < 0 {
		return NilRef, nil, fmt.Errorf("%w: %d * %d", ErrBadSize, count, size)
	}
	total, ok := mulNoOverflow(count, size)
	if !ok {
		return NilRef, nil, fmt.Errorf("%w: %d * %d overflows", ErrBadSize, count, size)
	}
	ref, payload, err := h.Alloc(total)
	if err != nil || ref == NilRef {
		return NilRef, nil, err
	}
	zero := payload[:total]
	for i := range zero {
		zero[i] = 0
	}
	return ref, payload, nil
}

// mulNoOverflow multiplies two non-negative ints, reporting whether the
// product fits.
func mulNoOverflow(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// Payload returns the usable byte range of the allocated block at ref.
func (h *Heap) Payload(ref Ref) ([]byte, error) {
	if h.data == nil {
		return nil, ErrClosed
	}
	off := int(ref)
	if err := h.checkRef(off); err != nil {
		return nil, err
	}
	return h.payload(off), nil
}

// payload slices the arena for the block at off. The capacity is clipped
// to the payload so callers cannot reach the boundary tags.
func (h *Heap) payload(off int) []byte {
	end := off + format.Size(format.Header(h.data, off)) - format.WordSize
	return h.data[off:end:end]
}

// checkRef validates that off plausibly addresses an allocated payload.
func (h *Heap) checkRef(off int) error {
	if off < format.FirstBlockOff || off >= len(h.data) || !format.Aligned8(off) {
		return fmt.Errorf("%w: offset 0x%X", ErrBadRef, off)
	}
	tag := format.Header(h.data, off)
	if !format.Allocated(tag) {
		return fmt.Errorf("%w: block at 0x%X is not allocated", ErrBadRef, off)
	}
	size := format.Size(tag)
	if size < format.MinBlockSize || off+size > len(h.data) {
		return fmt.Errorf("%w: block at 0x%X has impossible size %d", ErrBadRef, off, size)
	}
	return nil
}

// Check runs the structural validator against the arena and returns the
// first violated invariant, stamped with the caller's diagnostic tag.
// Diagnostic only; no allocation path calls it.
func (h *Heap) Check(tag string) error {
	if h.data == nil {
		return ErrClosed
	}
	if err := verify.AllInvariants(h.data); err != nil {
		var ce *verify.ConsistencyError
		if errors.As(err, &ce) {
			ce.Tag = tag
		}
		return err
	}
	return nil
}

// Bytes returns the raw arena, preamble included. The slice aliases live
// heap state; mutating it invalidates every invariant.
func (h *Heap) Bytes() []byte {
	return h.data
}

// Len returns the current arena size in bytes.
func (h *Heap) Len() int {
	return len(h.data)
}

// Close releases the arena. All references and payload slices become
// invalid.
func (h *Heap) Close() error {
	if h.region == nil {
		return nil
	}
	region := h.region
	h.region = nil
	h.data = nil
	return region.Close()
}
