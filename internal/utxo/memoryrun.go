package utxo

import (
	"container/heap"
	"sort"

	"github.com/tobysharp/timechain/pkg/types"
)

// directoryBits is how many bits of an outpoint hash's leading byte index
// the bucket directory. The leading byte is Hash[31], the byte Hash.Compare
// orders on first, so buckets follow the run's sort order. A Query first
// narrows to a bucket's [lo,hi) slice before doing the real comparison scan,
// trading a little directory memory for avoiding a full binary search per
// lookup in large runs.
const directoryBits = 8

func bucketOf(k types.OutPoint) int {
	return int(k.Hash[types.HashSize-1])
}

// MemoryRun is an immutable, sorted batch of OutputKVs covering a single
// contiguous height range, plus a bucket directory over entries' leading
// hash byte that narrows Query to a short run before it falls back to
// linear comparison.
type MemoryRun struct {
	entries []OutputKV
	// directory[b] is the index of the first entry whose bucket is >= b, so
	// bucket b's entries span [directory[b], directory[b+1]).
	directory   [(1 << directoryBits) + 1]int32
	beginHeight int64
	endHeight   int64
	mutable     bool
}

// NewMemoryRun sorts kvs (by Less) and builds a run covering [beginHeight,
// endHeight). Every entry is kept. mutableRun marks the run as mutable,
// which EraseSince requires.
func NewMemoryRun(kvs []OutputKV, beginHeight, endHeight int64, mutableRun bool) *MemoryRun {
	sorted := append([]OutputKV(nil), kvs...)
	sort.Slice(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })
	r := &MemoryRun{entries: sorted, beginHeight: beginHeight, endHeight: endHeight, mutable: mutableRun}
	r.buildDirectory()
	return r
}

func (r *MemoryRun) buildDirectory() {
	next := 0
	for i, kv := range r.entries {
		b := bucketOf(kv.Key)
		for next <= b {
			r.directory[next] = int32(i)
			next++
		}
	}
	for next < len(r.directory) {
		r.directory[next] = int32(len(r.entries))
		next++
	}
}

func (r *MemoryRun) bucketBounds(k types.OutPoint) (int, int) {
	b := bucketOf(k)
	return int(r.directory[b]), int(r.directory[b+1])
}

// Empty reports whether the run holds no entries.
func (r *MemoryRun) Empty() bool { return len(r.entries) == 0 }

// Size reports the number of entries.
func (r *MemoryRun) Size() int { return len(r.entries) }

// IsMutable reports whether this run retains cancelled pairs for undo.
func (r *MemoryRun) IsMutable() bool { return r.mutable }

// HeightRange reports the half-open [begin, end) height range this run covers.
func (r *MemoryRun) HeightRange() (int64, int64) { return r.beginHeight, r.endHeight }

// ContainsHeight reports whether height falls within this run's range.
func (r *MemoryRun) ContainsHeight(height int64) bool {
	return r.beginHeight <= height && height < r.endHeight
}

// Query looks up each key's latest event visible at height < before within
// [lo,hi) of the bucket it falls in, writing the funding id into ids for
// every key resolved by an Add not already cancelled by a later Spent. It
// returns the count of keys newly resolved.
func (r *MemoryRun) Query(keys []types.OutPoint, ids []OutputId, found []bool, before int64) int {
	n := 0
	for i, k := range keys {
		if found[i] {
			continue
		}
		lo, hi := r.bucketBounds(k)
		idx := sort.Search(hi-lo, func(j int) bool {
			return r.entries[lo+j].Key.Compare(k) >= 0
		}) + lo

		// Entries for a key are sorted by height descending, so walk forward
		// from the first match until one is visible at `before`.
		for idx < hi && r.entries[idx].Key.Compare(k) == 0 && r.entries[idx].Height >= before {
			idx++
		}
		if idx >= hi || r.entries[idx].Key.Compare(k) != 0 {
			continue
		}
		if r.entries[idx].Op == Spent {
			found[i] = true
			continue
		}
		ids[i] = r.entries[idx].Rid
		found[i] = true
		n++
	}
	return n
}

// EraseSince drops every entry at height >= h, requiring the run be
// mutable. It returns true if the run is now empty and can be discarded by
// its owning MemoryAge.
func (r *MemoryRun) EraseSince(h int64) bool {
	if !r.mutable {
		panic("utxo: EraseSince on immutable run")
	}
	if h <= r.beginHeight {
		r.entries = nil
		r.directory = [(1 << directoryBits) + 1]int32{}
		r.beginHeight, r.endHeight = 0, 0
		return true
	}
	if h < r.endHeight {
		kept := r.entries[:0]
		for _, kv := range r.entries {
			if kv.Height < h {
				kept = append(kept, kv)
			}
		}
		r.entries = kept
		r.buildDirectory()
		r.endHeight = h
	}
	return false
}

type mergeCursor struct {
	entries []OutputKV
	pos     int
}

func (c *mergeCursor) peek() OutputKV { return c.entries[c.pos] }
func (c *mergeCursor) done() bool     { return c.pos >= len(c.entries) }

type mergeHeap []*mergeCursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	return Less(h[i].peek(), h[j].peek())
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*mergeCursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeMemoryRuns streams inputs (oldest first) into a single sorted output
// run. When the output is immutable, a Spent immediately followed (in sort
// order, where a key's newer entries come first) by the Add it cancels is
// dropped together with that Add rather than carried forward, keeping
// merged runs from growing without bound. A mutable output keeps both.
func MergeMemoryRuns(inputs []*MemoryRun, outputMutable bool) *MemoryRun {
	if len(inputs) == 0 {
		return NewMemoryRun(nil, 0, 0, outputMutable)
	}
	begin, end := inputs[0].beginHeight, inputs[0].endHeight
	for _, in := range inputs[1:] {
		if in.beginHeight < begin {
			begin = in.beginHeight
		}
		if in.endHeight > end {
			end = in.endHeight
		}
	}

	h := make(mergeHeap, 0, len(inputs))
	for _, in := range inputs {
		if !in.Empty() {
			h = append(h, &mergeCursor{entries: in.entries})
		}
	}
	heap.Init(&h)

	var out []OutputKV
	var pendingSpent *OutputKV
	for h.Len() > 0 {
		cur := h[0]
		kv := cur.peek()

		// A deferred Spent immediately precedes its matching Add in sort
		// order (height descending within a key); when the current entry is
		// that Add, the pair fully cancels and neither is emitted.
		if pendingSpent != nil && kv.Op == Add && kv.Key.Compare(pendingSpent.Key) == 0 {
			pendingSpent = nil
			cur.pos++
			if cur.done() {
				heap.Pop(&h)
			} else {
				heap.Fix(&h, 0)
			}
			continue
		}
		if pendingSpent != nil {
			out = append(out, *pendingSpent)
			pendingSpent = nil
		}

		if !outputMutable && kv.Op == Spent {
			cp := kv
			pendingSpent = &cp
		} else {
			out = append(out, kv)
		}

		cur.pos++
		if cur.done() {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	if pendingSpent != nil {
		out = append(out, *pendingSpent)
	}

	return NewMemoryRun(out, begin, end, outputMutable)
}
