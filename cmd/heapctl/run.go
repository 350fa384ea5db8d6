package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/yhr91/heapkit/internal/trace"
	"github.com/yhr91/heapkit/malloc"
)

var (
	runCheck bool
	runLimit int
	runMap   string
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runCheck, "check", false, "Validate every arena invariant after each operation")
	cmd.Flags().IntVar(&runLimit, "limit", 0, "Arena reservation limit in bytes (0 = default)")
	cmd.Flags().StringVar(&runMap, "map", "", "Write a JSON arena map of the last replayed trace to this file")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <trace.rep>...",
		Short: "Replay allocation traces",
		Long: `The run command replays one or more allocation trace files against a
fresh heap each and reports how the allocator fared: operation count,
peak live payload, final arena size, and space utilization.

Example:
  heapctl run traces/binary.rep
  heapctl run traces/*.rep --check
  heapctl run traces/coalesce.rep --map arena.json --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
	return cmd
}

type RunResult struct {
	File        string
	Ops         int
	PeakLive    int // peak sum of requested payload bytes
	ArenaBytes  int
	Utilization float64
	Grows       int
	Splits      int
	Coalesces   int
}

func runRun(args []string) error {
	results := make([]RunResult, 0, len(args))
	for _, path := range args {
		res, err := replayTrace(path)
		if err != nil {
			printError("%v\n", err)
			return err
		}
		results = append(results, res)
	}

	if jsonOut {
		return printJSON(results)
	}

	for _, res := range results {
		printInfo("\nTrace: %s\n", res.File)
		printInfo("  Operations: %d\n", res.Ops)
		printInfo("  Peak live: %s\n", formatBytes(int64(res.PeakLive)))
		printInfo("  Final arena: %s\n", formatBytes(int64(res.ArenaBytes)))
		printInfo("  Utilization: %.1f%%\n", res.Utilization*100)
		printInfo("  Growths: %d  Splits: %d  Coalesces: %d\n", res.Grows, res.Splits, res.Coalesces)
	}
	return nil
}

func replayTrace(path string) (RunResult, error) {
	t, err := trace.ParseFile(path)
	if err != nil {
		return RunResult{}, err
	}
	printVerbose("Replaying %s: %d ops across %d ids\n", path, len(t.Ops), t.IDs)

	h, err := malloc.New(malloc.WithLimit(runLimit))
	if err != nil {
		return RunResult{}, err
	}
	defer h.Close()

	refs := make([]malloc.Ref, t.IDs)
	sizes := make([]int, t.IDs)
	live, peak := 0, 0
	for i, op := range t.Ops {
		switch op.Kind {
		case trace.Alloc:
			ref, _, err := h.Alloc(op.Size)
			if err != nil {
				return RunResult{}, fmt.Errorf("%s: op %d: alloc %d: %w", path, i, op.Size, err)
			}
			refs[op.ID], sizes[op.ID] = ref, op.Size
			live += op.Size

		case trace.Realloc:
			ref, _, err := h.Realloc(refs[op.ID], op.Size)
			if err != nil {
				return RunResult{}, fmt.Errorf("%s: op %d: realloc id %d to %d: %w", path, i, op.ID, op.Size, err)
			}
			live += op.Size - sizes[op.ID]
			refs[op.ID], sizes[op.ID] = ref, op.Size

		case trace.Free:
			if err := h.Free(refs[op.ID]); err != nil {
				return RunResult{}, fmt.Errorf("%s: op %d: free id %d: %w", path, i, op.ID, err)
			}
			live -= sizes[op.ID]
			refs[op.ID], sizes[op.ID] = malloc.NilRef, 0
		}
		if live > peak {
			peak = live
		}
		if runCheck {
			if err := h.Check(fmt.Sprintf("op %d", i)); err != nil {
				return RunResult{}, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if err := h.Check("final"); err != nil {
		return RunResult{}, fmt.Errorf("%s: %w", path, err)
	}
	if verbose && !quiet {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		h.DebugLogAllocations(log)
	}
	if runMap != "" {
		if err := writeArenaMap(h, runMap); err != nil {
			return RunResult{}, fmt.Errorf("%s: map: %w", path, err)
		}
		printVerbose("Arena map written to %s\n", runMap)
	}

	st := h.Stats()
	res := RunResult{
		File:       path,
		Ops:        len(t.Ops),
		PeakLive:   peak,
		ArenaBytes: h.Len(),
		Grows:      st.GrowCalls,
		Splits:     st.SplitCount,
		Coalesces:  st.CoalesceCount,
	}
	if res.ArenaBytes > 0 {
		res.Utilization = float64(res.PeakLive) / float64(res.ArenaBytes)
	}
	return res, nil
}

func writeArenaMap(h *malloc.Heap, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := jwriter.NewStreamingWriter(f, 4096)
	obj := w.Object()
	if err := h.WriteDetailedMap(obj); err != nil {
		return err
	}
	obj.End()
	if err := w.Flush(); err != nil {
		return err
	}
	return w.Error()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
