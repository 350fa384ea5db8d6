// Package format houses the low-level byte layout of a heap arena: the
// boundary-tag block encoding, the packed free-list link words, and the
// fixed metadata preamble. The goal is to keep the raw arithmetic focused
// and allocation-free so higher-level packages can orchestrate policy
// without touching byte offsets directly.
package format

import "math/bits"

const (
	// WordSize is the width of one metadata word. Adjacent blocks share a
	// word: the header of block N sits in its first half and the footer of
	// block N-1 in its second half.
	WordSize = 8

	// TagWidth is the width of one packed (size, allocated) tag. Two tags
	// fit in a word.
	TagWidth = 4

	// BlockAlignment is the required alignment of block sizes and payload
	// offsets. The low three bits of every tag are flag space.
	BlockAlignment = 8

	// BlockAlignmentMask is used for rounding sizes up to BlockAlignment.
	BlockAlignmentMask = BlockAlignment - 1

	// MinBlockSize is the smallest legal block: one shared header half, an
	// 8-byte payload (large enough for the two link offsets of a free
	// block), and one shared footer half.
	MinBlockSize = 16

	// PageSize is the granularity of arena growth. Requests larger than a
	// page grow by their own adjusted size instead.
	PageSize = 256

	// NumBuckets is the number of segregated free lists.
	NumBuckets = 11

	// BucketHeadsOff is the arena offset of the first bucket-head slot.
	// Each slot is one full word holding a payload offset; 0 means empty.
	BucketHeadsOff = WordSize

	// PreambleSize is the fixed metadata region at the front of the arena:
	// one padding word, NumBuckets head slots, and the two sentinel words.
	PreambleSize = (1 + NumBuckets + 2) * WordSize

	// PrologueOff is the payload offset of the prologue sentinel, a fixed
	// 8-byte allocated block terminating backward traversal.
	PrologueOff = PreambleSize - WordSize

	// FirstBlockOff is the payload offset of the first real block.
	FirstBlockOff = PreambleSize

	// MinArenaSize is the smallest arena an initialized heap can have: the
	// preamble followed by one page.
	MinArenaSize = PreambleSize + PageSize
)

// bucketShift is the log2 of the first bucket's nominal lower bound (64).
const bucketShift = 6

// BucketIndex returns the segregated-list bucket for a block of the given
// total size. Bucket i covers sizes [2^(6+i), 2^(7+i)); the first bucket
// also absorbs every smaller size and the last has no upper bound.
func BucketIndex(size int) int {
	i := bits.Len(uint(size)) - 1 - bucketShift
	if i < 0 {
		return 0
	}
	if i >= NumBuckets {
		return NumBuckets - 1
	}
	return i
}
