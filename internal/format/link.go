package format

// Free-list link words.
//
// A free block stores two arena-relative payload offsets in its first
// payload word: the successor in the low 32 bits and the predecessor in
// the high 32 bits. Offset 0 means "no link", which is unambiguous because
// the preamble occupies the front of the arena and no payload can start
// at offset 0. Each setter touches only its own half of the word; the
// other half may hold an unrelated link.

// LinkNext returns the successor offset stored in the free block at off.
func LinkNext(b []byte, off int) int {
	return int(ReadU32(b, off))
}

// LinkPrev returns the predecessor offset stored in the free block at off.
func LinkPrev(b []byte, off int) int {
	return int(ReadU32(b, off+TagWidth))
}

// SetLinkNext stores the successor offset of the free block at off.
func SetLinkNext(b []byte, off, next int) {
	PutU32(b, off, uint32(next))
}

// SetLinkPrev stores the predecessor offset of the free block at off.
func SetLinkPrev(b []byte, off, prev int) {
	PutU32(b, off+TagWidth, uint32(prev))
}

// BucketHead returns the payload offset heading bucket i, or 0 when the
// bucket is empty.
func BucketHead(b []byte, i int) int {
	return int(ReadU64(b, BucketHeadsOff+i*WordSize))
}

// SetBucketHead stores the payload offset heading bucket i.
func SetBucketHead(b []byte, i, off int) {
	PutU64(b, BucketHeadsOff+i*WordSize, uint64(off))
}
