package malloc

import (
	"fmt"
	"io"

	"github.com/yhr91/heapkit/internal/format"
)

// BlockInfo describes one block of the implicit chain.
type BlockInfo struct {
	Offset    Ref // payload offset inside the arena
	Size      int // full block size, tags included
	Allocated bool
}

// BlockIterator walks the block chain in address order, from the first
// real block to the epilogue.
type BlockIterator struct {
	data []byte
	off  int
	done bool
}

// Blocks returns an iterator over every block in the arena. The iterator
// reads the arena directly; allocating or freeing while iterating gives
// undefined results.
func (h *Heap) Blocks() *BlockIterator {
	return &BlockIterator{
		data: h.data,
		off:  format.FirstBlockOff,
		done: h.data == nil,
	}
}

// Next returns the next block, io.EOF at the epilogue, or an error when
// a tag would walk outside the arena.
func (it *BlockIterator) Next() (BlockInfo, error) {
	if it.done {
		return BlockInfo{}, io.EOF
	}

	off := it.off
	if off > len(it.data) {
		it.done = true
		return BlockInfo{}, fmt.Errorf("malloc: block chain leaves the arena at 0x%X", off)
	}

	tag := format.Header(it.data, off)
	size := format.Size(tag)
	if size == 0 {
		// Epilogue: end of the chain.
		it.done = true
		return BlockInfo{}, io.EOF
	}
	if size < format.MinBlockSize || off+size > len(it.data) {
		it.done = true
		return BlockInfo{}, fmt.Errorf("malloc: block at 0x%X has impossible size %d", off, size)
	}

	it.off = off + size
	return BlockInfo{
		Offset:    Ref(off),
		Size:      size,
		Allocated: format.Allocated(tag),
	}, nil
}
