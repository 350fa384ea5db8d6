package malloc

import "github.com/yhr91/heapkit/internal/format"

// Segregated free lists. Each of the NumBuckets preamble slots heads a
// doubly-linked list of free blocks whose sizes fall in that bucket's
// power-of-two range. Lists are LIFO: freed blocks go in at the head.
// The link words live in the first payload word of each free block, so
// list membership costs no extra space.

// insertFree pushes the free block at off onto the head of its bucket.
func (h *Heap) insertFree(off int) {
	i := format.BucketIndex(format.Size(format.Header(h.data, off)))
	head := format.BucketHead(h.data, i)
	if head != 0 {
		format.SetLinkNext(h.data, off, head)
		format.SetLinkPrev(h.data, head, off)
	} else {
		format.SetLinkNext(h.data, off, 0)
	}
	format.SetBucketHead(h.data, i, off)
	format.SetLinkPrev(h.data, off, 0)
}

// removeFree unlinks the free block at off from its bucket, splicing its
// neighbours (or the bucket head) around it.
func (h *Heap) removeFree(off int) {
	i := format.BucketIndex(format.Size(format.Header(h.data, off)))
	next := format.LinkNext(h.data, off)
	prev := format.LinkPrev(h.data, off)

	switch {
	case prev != 0 && next != 0:
		format.SetLinkNext(h.data, prev, next)
		format.SetLinkPrev(h.data, next, prev)
	case prev != 0:
		format.SetLinkNext(h.data, prev, 0)
	default:
		format.SetBucketHead(h.data, i, next)
		if next != 0 {
			format.SetLinkPrev(h.data, next, 0)
		}
	}
}

// findFit returns the payload offset of a free block of at least asize
// bytes, or 0 when no listed block fits. The search starts at the bucket
// asize maps to and walks upward. Bounded buckets use first fit; the
// unbounded top bucket uses best fit, since its members can exceed a
// request by any amount.
func (h *Heap) findFit(asize int) int {
	for i := format.BucketIndex(asize); i < format.NumBuckets; i++ {
		head := format.BucketHead(h.data, i)
		if head == 0 {
			continue
		}
		if i == format.NumBuckets-1 {
			return h.bestFit(head, asize)
		}
		for off := head; off != 0; off = format.LinkNext(h.data, off) {
			if format.Size(format.Header(h.data, off)) >= asize {
				return off
			}
		}
	}
	return 0
}

// bestFit walks one list and returns the smallest block of at least
// asize bytes. Ties keep the earlier block.
func (h *Heap) bestFit(head, asize int) int {
	var best, bestSize int
	for off := head; off != 0; off = format.LinkNext(h.data, off) {
		size := format.Size(format.Header(h.data, off))
		if size < asize {
			continue
		}
		if best == 0 || size < bestSize {
			best, bestSize = off, size
		}
	}
	return best
}
