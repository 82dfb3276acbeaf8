// Package gc simulates the semispace copying collector of §4.3: allocation
// accounting against a threshold, a generation-stamped reachability trace
// rooted through the VM, and checkpoint-driven collection.
//
// Go objects already have a stable address and the host runtime already
// reclaims unreachable memory, so nothing here physically copies bytes
// between semispaces the way the original's Memory::copy() does — that step
// cannot be performed from inside Go without fighting the runtime with
// unsafe. What this package does implement faithfully is every *observable*
// invariant of the collector: every root-reachable Value gets traced exactly
// once per collection, dead objects are dropped from the live set, the
// threshold grows on a high-water mark, and collections are reported via
// Stats() the same way the original reports them to diagnostics.
package gc

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wudi/magpie/values"
)

// DefaultThreshold is the occupancy, in estimated bytes, past which the next
// interpreter checkpoint returns DID_GC (§4.3: "default 2 MiB").
const DefaultThreshold uint64 = 2 * 1024 * 1024

// HighWaterMark is the fraction of the threshold that, if still occupied
// right after a collection, causes the threshold to grow (§4.3: "threshold
// may grow if occupancy passed a high-water mark").
const HighWaterMark = 0.7

// GrowthFactor scales the threshold once the high-water mark is crossed.
const GrowthFactor = 2

// CollectStats is the diagnostic snapshot exposed by Stats() (§4.3.1, NEW).
type CollectStats struct {
	HeapSize    uint64
	Occupied    uint64
	Collections uint64
	LastPause   time.Duration
}

func (s CollectStats) String() string {
	return fmt.Sprintf("heap=%s occupied=%s collections=%d lastPause=%s",
		humanize.Bytes(s.HeapSize), humanize.Bytes(s.Occupied), s.Collections, s.LastPause)
}

type entry struct {
	obj  values.Reacher
	size uint64
}

// Heap tracks every object the VM has allocated since the last collection
// and answers whether a checkpoint must collect (§4.3).
type Heap struct {
	threshold   uint64
	occupied    uint64
	generation  uint64
	collections uint64
	lastPause   time.Duration
	objects     []entry
}

func NewHeap(threshold uint64) *Heap {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Heap{threshold: threshold}
}

// Alloc registers a freshly created heap object with the collector. The VM
// calls this once per heap allocation (RECORD, LIST, FUNCTION, CLASS, ...), mirroring
// Memory::allocate() in the original.
func (h *Heap) Alloc(obj values.Reacher, size uint64) {
	obj.Header().Gen = h.generation
	h.objects = append(h.objects, entry{obj: obj, size: size})
	h.occupied += size
}

// NeedsCollect reports whether the next interpreter checkpoint must return
// DID_GC before executing another instruction (§4.3, §4.4: "if a collection
// is needed ... the loop returns DID_GC").
func (h *Heap) NeedsCollect() bool { return h.occupied >= h.threshold }

// RootFunc enumerates every Value a root (a fiber's active stack slots, its
// catch frames, module variables, the symbol/class/native tables) holds
// directly; Collect transitively marks everything reachable from there.
type RootFunc func(mark func(*values.Value))

// Collect performs one generation-stamped reachability trace from roots,
// drops every object that trace did not reach, and grows the threshold if
// occupancy is still above the high-water mark afterward (§4.3 steps 1-4,
// adapted: "swap semispaces" / "copy live objects" become "bump the
// generation stamp" / "keep only objects the trace reached").
func (h *Heap) Collect(roots RootFunc) CollectStats {
	start := time.Now()
	h.generation++
	gen := h.generation

	live := make(map[values.Reacher]struct{}, len(h.objects))
	var mark func(v *values.Value)
	mark = func(v *values.Value) {
		if v == nil {
			return
		}
		r := v.HeapData()
		if r == nil {
			return
		}
		hdr := r.Header()
		if hdr.Gen == gen {
			return
		}
		hdr.Gen = gen
		live[r] = struct{}{}
		r.Reach(mark)
	}
	roots(mark)

	kept := h.objects[:0]
	var occupied uint64
	for _, e := range h.objects {
		if _, ok := live[e.obj]; ok {
			kept = append(kept, e)
			occupied += e.size
		}
	}
	h.objects = kept
	h.occupied = occupied
	h.collections++
	h.lastPause = time.Since(start)

	if float64(h.occupied) >= float64(h.threshold)*HighWaterMark {
		h.threshold *= GrowthFactor
	}

	return h.Stats()
}

func (h *Heap) Stats() CollectStats {
	return CollectStats{
		HeapSize:    h.threshold,
		Occupied:    h.occupied,
		Collections: h.collections,
		LastPause:   h.lastPause,
	}
}

// EstimateSize approximates the byte footprint of a heap value for
// threshold accounting; exactness does not matter, only that larger
// objects count for more (§4.3 does not mandate a specific accounting
// unit, only that "an allocation failure or threshold triggers a
// collection").
func EstimateSize(v *values.Value) uint64 {
	const wordSize = 8
	const overhead = 32

	r := v.HeapData()
	if r == nil {
		return wordSize
	}
	switch d := v.Data.(type) {
	case interface{ Len() int }:
		return uint64(overhead + d.Len()*wordSize)
	default:
		_ = d
		return overhead
	}
}
