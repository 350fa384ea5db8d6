package malloc

import "errors"

var (
	// ErrNoSpace indicates that no free block was large enough and the
	// arena could not grow to make one.
	ErrNoSpace = errors.New("malloc: no space left in arena")

	// ErrBadRef indicates a reference that is out of bounds, misaligned,
	// or does not address an allocated block.
	ErrBadRef = errors.New("malloc: bad block reference")

	// ErrBadSize indicates a negative size or a product that overflows.
	ErrBadSize = errors.New("malloc: bad allocation size")

	// ErrClosed indicates use of a heap after Close.
	ErrClosed = errors.New("malloc: heap closed")
)
