package memsys

import (
	"errors"
	"testing"
)

func TestReserveAndExtend(t *testing.T) {
	r, err := Reserve(4096)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Close()

	if r.Len() != 0 || r.Cap() != 4096 {
		t.Fatalf("fresh region len=%d cap=%d want 0/4096", r.Len(), r.Cap())
	}

	if off := mustExtend(t, r, 112); off != 0 {
		t.Fatalf("first extension starts at %d want 0", off)
	}
	if off := mustExtend(t, r, 256); off != 112 {
		t.Fatalf("second extension starts at %d want 112", off)
	}
	if r.Len() != 368 || len(r.Bytes()) != 368 {
		t.Fatalf("len=%d bytes=%d want 368", r.Len(), len(r.Bytes()))
	}
}

func mustExtend(t *testing.T, r *Region, n int) int {
	t.Helper()
	off, err := r.Extend(n)
	if err != nil {
		t.Fatalf("Extend(%d): %v", n, err)
	}
	return off
}

func TestExtendedBytesAreZero(t *testing.T) {
	r, err := Reserve(1024)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Close()
	if _, err := r.Extend(512); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestBytesStableAcrossExtend(t *testing.T) {
	r, err := Reserve(4096)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Close()

	if _, err := r.Extend(64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	first := r.Bytes()
	first[63] = 0xAB

	if _, err := r.Extend(64); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	// Growth must not relocate: the old slice still views live bytes.
	if r.Bytes()[63] != 0xAB || first[63] != 0xAB {
		t.Fatalf("extension relocated or lost committed bytes")
	}
	first[63] = 0xCD
	if r.Bytes()[63] != 0xCD {
		t.Fatalf("old slice no longer aliases the region")
	}
}

func TestExtendPastLimit(t *testing.T) {
	r, err := Reserve(128)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Close()

	if _, err := r.Extend(128); err != nil {
		t.Fatalf("Extend to limit: %v", err)
	}
	if _, err := r.Extend(1); !errors.Is(err, ErrLimit) {
		t.Fatalf("Extend past limit = %v, want ErrLimit", err)
	}
	if r.Len() != 128 {
		t.Fatalf("failed extension changed length to %d", r.Len())
	}
}

func TestNegativeExtend(t *testing.T) {
	r, err := Reserve(128)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Close()
	if _, err := r.Extend(-1); err == nil {
		t.Fatalf("negative extension accepted")
	}
}

func TestUseAfterClose(t *testing.T) {
	r, err := Reserve(128)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := r.Extend(8); !errors.Is(err, ErrClosed) {
		t.Fatalf("Extend after Close = %v, want ErrClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
