package format

// Alignment utilities. Block sizes and payload offsets must stay on 8-byte
// boundaries so that the low three bits of every tag remain flag space.

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + BlockAlignmentMask) & ^BlockAlignmentMask
}

// Aligned8 reports whether n is on an 8-byte boundary.
func Aligned8(n int) bool {
	return n&BlockAlignmentMask == 0
}
