// Package memsys provides the growable memory region backing a heap.
//
// A region reserves its maximum size up front and afterwards only extends,
// so slices of its committed prefix stay valid for the life of the region:
// growth never relocates existing bytes. On platforms with mmap the
// reservation is an anonymous mapping and pages are committed lazily by
// the OS; elsewhere it is a single fixed-capacity Go allocation.
package memsys

import (
	"errors"
	"fmt"
)

// DefaultLimit is the reservation used when the caller does not pick one.
const DefaultLimit = 1 << 28 // 256 MiB

var (
	// ErrLimit indicates the region cannot extend past its reservation.
	ErrLimit = errors.New("memsys: reservation exhausted")

	// ErrClosed indicates use of a region after Close.
	ErrClosed = errors.New("memsys: region closed")
)

// Region is an append-only byte region with a fixed reservation.
type Region struct {
	buf  []byte // full reservation
	used int    // committed prefix length
}

// Reserve creates a region able to hold up to limit bytes. A limit of zero
// or less selects DefaultLimit.
func Reserve(limit int) (*Region, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	buf, err := reserve(limit)
	if err != nil {
		return nil, fmt.Errorf("memsys: reserve %d bytes: %w", limit, err)
	}
	return &Region{buf: buf}, nil
}

// Extend commits n more bytes and returns the offset at which the new
// bytes begin (the previous length). The new bytes are zero.
func (r *Region) Extend(n int) (int, error) {
	if r.buf == nil {
		return 0, ErrClosed
	}
	if n < 0 {
		return 0, fmt.Errorf("memsys: negative extension %d", n)
	}
	if r.used+n > len(r.buf) {
		return 0, fmt.Errorf("%w: %d+%d exceeds %d", ErrLimit, r.used, n, len(r.buf))
	}
	old := r.used
	r.used += n
	return old, nil
}

// Bytes returns the committed prefix. The slice remains valid across
// Extend calls and is invalidated only by Close.
func (r *Region) Bytes() []byte {
	return r.buf[:r.used:r.used]
}

// Len returns the committed length.
func (r *Region) Len() int {
	return r.used
}

// Cap returns the reservation size.
func (r *Region) Cap() int {
	return len(r.buf)
}

// Close releases the reservation. Slices obtained from Bytes must not be
// used afterwards.
func (r *Region) Close() error {
	if r.buf == nil {
		return nil
	}
	buf := r.buf
	r.buf, r.used = nil, 0
	return release(buf)
}
