package malloc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/yhr91/heapkit/internal/format"
)

// DebugLogAllocations writes one debug record per allocated block. Walk
// errors are logged and end the walk.
func (h *Heap) DebugLogAllocations(log *slog.Logger) {
	it := h.Blocks()
	for {
		bi, err := it.Next()
		if err != nil {
			if err != io.EOF {
				log.Error("block walk failed", slog.String("error", err.Error()))
			}
			return
		}
		if bi.Allocated {
			log.Debug("allocated block",
				slog.Int("offset", int(bi.Offset)),
				slog.Int("size", bi.Size))
		}
	}
}

// WriteDetailedMap emits the arena's structure into an open JSON object:
// usage tallies, per-bucket free counts, and one entry per block. The
// caller owns the surrounding writer and checks its Error after closing
// the object.
func (h *Heap) WriteDetailedMap(obj jwriter.ObjectState) error {
	if h.data == nil {
		return ErrClosed
	}
	u, err := h.Usage()
	if err != nil {
		return err
	}
	obj.Name("arenaBytes").Int(u.ArenaBytes)
	obj.Name("allocatedBytes").Int(u.AllocatedBytes)
	obj.Name("allocatedBlocks").Int(u.AllocatedBlocks)
	obj.Name("freeBytes").Int(u.FreeBytes)
	obj.Name("freeBlocks").Int(u.FreeBlocks)
	obj.Name("largestFree").Int(u.LargestFree)

	// A list longer than the arena can hold blocks is cyclic.
	limit := len(h.data) / format.MinBlockSize
	buckets := obj.Name("buckets").Array()
	for i := 0; i < format.NumBuckets; i++ {
		n := 0
		for off := format.BucketHead(h.data, i); off != 0; off = format.LinkNext(h.data, off) {
			n++
			if n > limit {
				return fmt.Errorf("malloc: free list %d does not terminate", i)
			}
		}
		buckets.Int(n)
	}
	buckets.End()

	blocks := obj.Name("blocks").Array()
	it := h.Blocks()
	for {
		bi, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		b := blocks.Object()
		b.Name("offset").Int(int(bi.Offset))
		b.Name("size").Int(bi.Size)
		b.Name("allocated").Bool(bi.Allocated)
		b.End()
	}
	blocks.End()
	return nil
}
