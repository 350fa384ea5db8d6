//go:build linux || darwin

package memsys

import "golang.org/x/sys/unix"

// reserve maps an anonymous private region of the full limit. The mapping
// is zero-filled and pages are only committed as the heap touches them.
func reserve(limit int) ([]byte, error) {
	return unix.Mmap(-1, 0, limit, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func release(buf []byte) error {
	return unix.Munmap(buf)
}
