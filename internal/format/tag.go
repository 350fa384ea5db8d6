package format

// Boundary-tag accessors.
//
// A block whose payload starts at offset p is described by one packed tag
// stored twice: the header in the first half of the word at p-8, and the
// footer in the last half of the block's final word, at p+size-4. The
// remaining half of the header word carries the previous block's footer,
// so writes are always half-word granular and never disturb a neighbour.

// Pack combines a block size and its allocation state into one tag. The
// size must be a multiple of 8; the lowest bit carries the allocated flag.
func Pack(size int, allocated bool) uint32 {
	tag := uint32(size)
	if allocated {
		tag |= 1
	}
	return tag
}

// Size extracts the block size from a tag, masking off the flag bits.
func Size(tag uint32) int {
	return int(tag &^ uint32(BlockAlignmentMask))
}

// Allocated reports whether the tag's allocation bit is set.
func Allocated(tag uint32) bool {
	return tag&1 != 0
}

// Header returns the tag in the header of the block whose payload starts
// at off.
func Header(b []byte, off int) uint32 {
	return ReadU32(b, off-WordSize)
}

// PutHeader stores tag in the header of the block at off.
func PutHeader(b []byte, off int, tag uint32) {
	PutU32(b, off-WordSize, tag)
}

// Footer returns the tag in the footer of the block at off. The footer
// position is derived from the size recorded in the header.
func Footer(b []byte, off int) uint32 {
	return ReadU32(b, off+Size(Header(b, off))-TagWidth)
}

// PutFooter stores tag in the footer of the block at off. The position is
// derived from the header, so the header must be written first; after a
// merge this lands the footer at the end of the merged span.
func PutFooter(b []byte, off int, tag uint32) {
	PutU32(b, off+Size(Header(b, off))-TagWidth, tag)
}

// NextBlock returns the payload offset of the block following off.
func NextBlock(b []byte, off int) int {
	return off + Size(Header(b, off))
}

// PrevBlock returns the payload offset of the block preceding off. The
// previous block's footer occupies the half-word immediately before the
// header of the current block.
func PrevBlock(b []byte, off int) int {
	return off - Size(ReadU32(b, off-TagWidth))
}
