package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/yhr91/heapkit/malloc"
)

var (
	stressOps        int
	stressSeed       int64
	stressMaxSize    int
	stressCheckEvery int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressOps, "ops", 1000, "Number of operations to run")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 4096, "Largest single request in bytes")
	cmd.Flags().
		IntVar(&stressCheckEvery, "check-every", 100, "Validate invariants every N operations (0 = only at the end)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized allocation workload",
		Long: `The stress command drives the heap with a seeded random mix of
alloc, free, and realloc. Every payload is filled with a deterministic
pattern and verified before release, so both structural corruption and
data corruption are caught.

Example:
  heapctl stress
  heapctl stress --ops 100000 --max-size 65536 --check-every 1000
  heapctl stress --seed 7 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

type StressResult struct {
	Ops        int
	Seed       int64
	LiveBlocks int
	LiveBytes  int64
	ArenaBytes int
	Grows      int
	Splits     int
	Coalesces  int
}

type stressBlock struct {
	ref  malloc.Ref
	n    int
	seed byte
}

func runStress() error {
	if stressOps < 0 {
		return fmt.Errorf("--ops must be non-negative, got %d", stressOps)
	}
	if stressMaxSize <= 0 {
		return fmt.Errorf("--max-size must be positive, got %d", stressMaxSize)
	}

	printVerbose("Stress: %d ops, seed %d, max size %d\n", stressOps, stressSeed, stressMaxSize)

	h, err := malloc.New()
	if err != nil {
		return err
	}
	defer h.Close()

	rng := rand.New(rand.NewSource(stressSeed))
	var live []stressBlock
	for i := 0; i < stressOps; i++ {
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			n := 1 + rng.Intn(stressMaxSize)
			ref, buf, err := h.Alloc(n)
			if err != nil {
				return fmt.Errorf("op %d: alloc %d: %w", i, n, err)
			}
			seed := byte(rng.Intn(256))
			fillStressPattern(buf[:n], seed)
			live = append(live, stressBlock{ref, n, seed})

		case op < 8:
			j := rng.Intn(len(live))
			b := live[j]
			buf, err := h.Payload(b.ref)
			if err != nil {
				return fmt.Errorf("op %d: payload 0x%X: %w", i, b.ref, err)
			}
			if err := verifyStressPattern(buf[:b.n], b.seed); err != nil {
				return fmt.Errorf("op %d: block 0x%X: %w", i, b.ref, err)
			}
			if err := h.Free(b.ref); err != nil {
				return fmt.Errorf("op %d: free 0x%X: %w", i, b.ref, err)
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]

		default:
			j := rng.Intn(len(live))
			b := live[j]
			n := 1 + rng.Intn(stressMaxSize)
			ref, buf, err := h.Realloc(b.ref, n)
			if err != nil {
				return fmt.Errorf("op %d: realloc 0x%X to %d: %w", i, b.ref, n, err)
			}
			seed := byte(rng.Intn(256))
			fillStressPattern(buf[:n], seed)
			live[j] = stressBlock{ref, n, seed}
		}

		if stressCheckEvery > 0 && (i+1)%stressCheckEvery == 0 {
			if err := h.Check(fmt.Sprintf("op %d", i)); err != nil {
				return err
			}
		}
	}

	var liveBytes int64
	for _, b := range live {
		buf, err := h.Payload(b.ref)
		if err != nil {
			return fmt.Errorf("final sweep: payload 0x%X: %w", b.ref, err)
		}
		if err := verifyStressPattern(buf[:b.n], b.seed); err != nil {
			return fmt.Errorf("final sweep: block 0x%X: %w", b.ref, err)
		}
		liveBytes += int64(b.n)
	}
	if err := h.Check("final"); err != nil {
		return err
	}

	st := h.Stats()
	res := StressResult{
		Ops:        stressOps,
		Seed:       stressSeed,
		LiveBlocks: len(live),
		LiveBytes:  liveBytes,
		ArenaBytes: h.Len(),
		Grows:      st.GrowCalls,
		Splits:     st.SplitCount,
		Coalesces:  st.CoalesceCount,
	}
	if jsonOut {
		return printJSON(res)
	}

	printInfo("\nStress: %d ops, seed %d\n", res.Ops, res.Seed)
	printInfo("  Live blocks: %d (%s requested)\n", res.LiveBlocks, formatBytes(res.LiveBytes))
	printInfo("  Final arena: %s\n", formatBytes(int64(res.ArenaBytes)))
	printInfo("  Growths: %d  Splits: %d  Coalesces: %d\n", res.Grows, res.Splits, res.Coalesces)
	printInfo("\nResult: all invariants held\n")
	return nil
}

func fillStressPattern(buf []byte, seed byte) {
	for i := range buf {
		buf[i] = seed + byte(i)
	}
}

func verifyStressPattern(buf []byte, seed byte) error {
	for i := range buf {
		if buf[i] != seed+byte(i) {
			return fmt.Errorf("payload corrupt at byte %d: got 0x%02X, want 0x%02X",
				i, buf[i], seed+byte(i))
		}
	}
	return nil
}
