package malloc

import "io"

// Stats holds cumulative operation counters. Counters track calls, not
// successes, except for the byte totals, which only move when a block
// actually changes state.
type Stats struct {
	AllocCalls   int
	FreeCalls    int
	ReallocCalls int
	CallocCalls  int // calloc also bumps AllocCalls, it allocates through Alloc

	GrowCalls int
	GrowBytes int64 // total bytes added to the arena

	BytesAllocated int64 // sum of block sizes handed out, tags included
	BytesFreed     int64 // sum of block sizes released

	SplitCount    int
	CoalesceCount int
}

// LiveBytes returns the block bytes currently handed out.
func (s Stats) LiveBytes() int64 {
	return s.BytesAllocated - s.BytesFreed
}

// Stats returns a copy of the operation counters.
func (h *Heap) Stats() Stats {
	return h.stats
}

// Usage is a point-in-time accounting of the arena, taken by walking the
// block chain.
type Usage struct {
	ArenaBytes      int
	AllocatedBytes  int
	FreeBytes       int
	AllocatedBlocks int
	FreeBlocks      int
	LargestFree     int
}

// Usage walks the block chain and tallies it. Fails if the chain is
// corrupt.
func (h *Heap) Usage() (Usage, error) {
	if h.data == nil {
		return Usage{}, ErrClosed
	}
	u := Usage{ArenaBytes: len(h.data)}
	it := h.Blocks()
	for {
		bi, err := it.Next()
		if err == io.EOF {
			return u, nil
		}
		if err != nil {
			return Usage{}, err
		}
		if bi.Allocated {
			u.AllocatedBlocks++
			u.AllocatedBytes += bi.Size
		} else {
			u.FreeBlocks++
			u.FreeBytes += bi.Size
			if bi.Size > u.LargestFree {
				u.LargestFree = bi.Size
			}
		}
	}
}
