// Package verify provides structural validation for allocator arenas.
// These helpers back Heap.Check and are used directly in tests.
package verify

import (
	"fmt"

	"github.com/yhr91/heapkit/internal/format"
)

// ConsistencyError describes one violated arena invariant.
type ConsistencyError struct {
	Check   string // name of the check that failed
	Tag     string // caller-supplied call-site tag, stamped by Heap.Check
	Offset  int    // arena offset of the violation, -1 when there is no single location
	Message string
	Details map[string]interface{}
}

func (e *ConsistencyError) Error() string {
	check := e.Check
	if e.Tag != "" {
		check = e.Check + " (" + e.Tag + ")"
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", check, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", check, e.Message)
}

// AllInvariants validates every arena invariant in one call.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(data []byte) error {
	if err := Sentinels(data); err != nil {
		return err
	}
	if err := BlockChain(data); err != nil {
		return err
	}
	if err := FreeLists(data); err != nil {
		return err
	}
	return Accounting(data)
}

// Sentinels validates the prologue and epilogue marker blocks.
func Sentinels(data []byte) error {
	if len(data) < format.MinArenaSize {
		return &ConsistencyError{
			Check:   "Sentinels",
			Message: fmt.Sprintf("arena too small: %d bytes (need %d)", len(data), format.MinArenaSize),
			Offset:  -1,
		}
	}
	if len(data)%format.WordSize != 0 {
		return &ConsistencyError{
			Check:   "Sentinels",
			Message: fmt.Sprintf("arena length %d not word-aligned", len(data)),
			Offset:  -1,
		}
	}

	ph := format.Header(data, format.PrologueOff)
	if format.Size(ph) != format.WordSize || !format.Allocated(ph) {
		return &ConsistencyError{
			Check:   "Sentinels",
			Message: fmt.Sprintf("prologue header: size=%d allocated=%v (want size=%d allocated=true)", format.Size(ph), format.Allocated(ph), format.WordSize),
			Offset:  format.PrologueOff - format.WordSize,
		}
	}
	pf := format.Footer(data, format.PrologueOff)
	if format.Size(pf) != format.WordSize || !format.Allocated(pf) {
		return &ConsistencyError{
			Check:   "Sentinels",
			Message: fmt.Sprintf("prologue footer: size=%d allocated=%v (want size=%d allocated=true)", format.Size(pf), format.Allocated(pf), format.WordSize),
			Offset:  format.PrologueOff + format.TagWidth,
		}
	}

	// The epilogue header occupies the first half of the final word.
	et := format.Header(data, len(data))
	if format.Size(et) != 0 || !format.Allocated(et) {
		return &ConsistencyError{
			Check:   "Sentinels",
			Message: fmt.Sprintf("epilogue header: size=%d allocated=%v (want size=0 allocated=true)", format.Size(et), format.Allocated(et)),
			Offset:  len(data) - format.WordSize,
		}
	}
	return nil
}

// BlockChain walks the implicit block chain and validates every block:
// alignment, plausible size, matching boundary tags, and no two adjacent
// free blocks.
func BlockChain(data []byte) error {
	if len(data) < format.MinArenaSize {
		return &ConsistencyError{
			Check:   "BlockChain",
			Message: fmt.Sprintf("arena too small: %d bytes", len(data)),
			Offset:  -1,
		}
	}

	off := format.FirstBlockOff
	prevFree := false
	for {
		if off > len(data) {
			return &ConsistencyError{
				Check:   "BlockChain",
				Message: "block chain runs past the arena end",
				Offset:  off,
			}
		}
		if !format.Aligned8(off) {
			return &ConsistencyError{
				Check:   "BlockChain",
				Message: "block payload not 8-byte aligned",
				Offset:  off,
			}
		}

		tag := format.Header(data, off)
		size := format.Size(tag)
		if size == 0 {
			if off != len(data) {
				return &ConsistencyError{
					Check:   "BlockChain",
					Message: "zero-size block before the arena end",
					Offset:  off,
				}
			}
			return nil
		}
		if size < format.MinBlockSize {
			return &ConsistencyError{
				Check:   "BlockChain",
				Message: fmt.Sprintf("block size %d below minimum %d", size, format.MinBlockSize),
				Offset:  off,
			}
		}
		if off+size > len(data) {
			return &ConsistencyError{
				Check:   "BlockChain",
				Message: fmt.Sprintf("block of size %d extends past the arena end", size),
				Offset:  off,
				Details: map[string]interface{}{"size": size, "arena": len(data)},
			}
		}

		foot := format.Footer(data, off)
		if format.Size(foot) != size || format.Allocated(foot) != format.Allocated(tag) {
			return &ConsistencyError{
				Check: "BlockChain",
				Message: fmt.Sprintf("header/footer mismatch: header size=%d allocated=%v, footer size=%d allocated=%v",
					size, format.Allocated(tag), format.Size(foot), format.Allocated(foot)),
				Offset: off,
			}
		}

		free := !format.Allocated(tag)
		if free && prevFree {
			return &ConsistencyError{
				Check:   "BlockChain",
				Message: "two adjacent free blocks escaped coalescing",
				Offset:  off,
			}
		}
		prevFree = free
		off += size
	}
}

// FreeLists walks every bucket and validates each entry: it must be a
// free block inside the arena, filed in the bucket its size maps to,
// with symmetric predecessor links.
func FreeLists(data []byte) error {
	if len(data) < format.MinArenaSize {
		return &ConsistencyError{
			Check:   "FreeLists",
			Message: fmt.Sprintf("arena too small: %d bytes", len(data)),
			Offset:  -1,
		}
	}

	// More entries than the arena can hold blocks means a cycle.
	maxNodes := len(data) / format.MinBlockSize
	for i := 0; i < format.NumBuckets; i++ {
		prev := 0
		count := 0
		for off := format.BucketHead(data, i); off != 0; off = format.LinkNext(data, off) {
			count++
			if count > maxNodes {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("list %d does not terminate", i),
					Offset:  -1,
					Details: map[string]interface{}{"list": i},
				}
			}
			if off < format.FirstBlockOff || off >= len(data) || !format.Aligned8(off) {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("list %d links outside the arena", i),
					Offset:  off,
				}
			}
			tag := format.Header(data, off)
			size := format.Size(tag)
			if size < format.MinBlockSize || off+size > len(data) {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("list %d entry has impossible size %d", i, size),
					Offset:  off,
				}
			}
			if format.Allocated(tag) {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("allocated block linked on list %d", i),
					Offset:  off,
				}
			}
			if want := format.BucketIndex(size); want != i {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("block of size %d filed in list %d, belongs in list %d", size, i, want),
					Offset:  off,
					Details: map[string]interface{}{"size": size, "list": i, "want": want},
				}
			}
			if got := format.LinkPrev(data, off); got != prev {
				return &ConsistencyError{
					Check:   "FreeLists",
					Message: fmt.Sprintf("list %d predecessor link 0x%X does not match previous entry 0x%X", i, got, prev),
					Offset:  off,
				}
			}
			prev = off
		}
	}
	return nil
}

// Accounting cross-checks the two views of free space: every free block
// in the chain must be listed in exactly one bucket, so the chain's free
// block count and the total list population must agree.
func Accounting(data []byte) error {
	if len(data) < format.MinArenaSize {
		return &ConsistencyError{
			Check:   "Accounting",
			Message: fmt.Sprintf("arena too small: %d bytes", len(data)),
			Offset:  -1,
		}
	}

	chainFree := 0
	off := format.FirstBlockOff
	for off < len(data) {
		tag := format.Header(data, off)
		size := format.Size(tag)
		if size < format.MinBlockSize || off+size > len(data) {
			return &ConsistencyError{
				Check:   "Accounting",
				Message: "block chain is not walkable",
				Offset:  off,
			}
		}
		if !format.Allocated(tag) {
			chainFree++
		}
		off += size
	}

	listed := 0
	maxNodes := len(data) / format.MinBlockSize
	for i := 0; i < format.NumBuckets; i++ {
		count := 0
		for off := format.BucketHead(data, i); off != 0; off = format.LinkNext(data, off) {
			count++
			if count > maxNodes {
				return &ConsistencyError{
					Check:   "Accounting",
					Message: fmt.Sprintf("list %d does not terminate", i),
					Offset:  -1,
				}
			}
			if off < format.FirstBlockOff || off+format.WordSize > len(data) {
				return &ConsistencyError{
					Check:   "Accounting",
					Message: fmt.Sprintf("list %d is not walkable", i),
					Offset:  off,
				}
			}
		}
		listed += count
	}

	if chainFree != listed {
		return &ConsistencyError{
			Check:   "Accounting",
			Message: fmt.Sprintf("%d free blocks in the chain, %d entries across the lists", chainFree, listed),
			Offset:  -1,
			Details: map[string]interface{}{"chain": chainFree, "listed": listed},
		}
	}
	return nil
}

// Block spot-checks the single block whose payload starts at off:
// bounds, alignment, and matching boundary tags.
func Block(data []byte, off int) error {
	if off < format.FirstBlockOff || off >= len(data) || !format.Aligned8(off) {
		return &ConsistencyError{
			Check:   "Block",
			Message: "payload offset outside the arena or misaligned",
			Offset:  off,
		}
	}
	tag := format.Header(data, off)
	size := format.Size(tag)
	if size < format.MinBlockSize || off+size > len(data) {
		return &ConsistencyError{
			Check:   "Block",
			Message: fmt.Sprintf("impossible block size %d", size),
			Offset:  off,
		}
	}
	foot := format.Footer(data, off)
	if format.Size(foot) != size || format.Allocated(foot) != format.Allocated(tag) {
		return &ConsistencyError{
			Check: "Block",
			Message: fmt.Sprintf("header/footer mismatch: header size=%d allocated=%v, footer size=%d allocated=%v",
				size, format.Allocated(tag), format.Size(foot), format.Allocated(foot)),
			Offset: off,
		}
	}
	return nil
}
