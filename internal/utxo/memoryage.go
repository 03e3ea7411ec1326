package utxo

import (
	"sync"
	"sync/atomic"

	"github.com/tobysharp/timechain/pkg/types"
)

// MemoryAge holds a time-ordered sequence of runs at one level of the
// index's fan-in hierarchy: newest run last. Once len(runs) reaches
// mergeFanIn it is ready for compaction into the next age.
// Queries snapshot the run slice atomically so compaction never blocks a
// reader.
type MemoryAge struct {
	mergeFanIn int
	mutableAge bool

	runs atomic.Pointer[[]*MemoryRun]

	// mu serializes writers (Append/Compact/EraseSince); readers only touch
	// the atomic snapshot.
	mu sync.Mutex
}

// NewMemoryAge returns an empty age. mutableAge ages retain cancelling
// Add/Spent pairs across a merge so EraseSince can still undo them.
func NewMemoryAge(mergeFanIn int, mutableAge bool) *MemoryAge {
	a := &MemoryAge{mergeFanIn: mergeFanIn, mutableAge: mutableAge}
	empty := []*MemoryRun{}
	a.runs.Store(&empty)
	return a
}

// IsMutable reports whether this age preserves cancelled pairs.
func (a *MemoryAge) IsMutable() bool { return a.mutableAge }

// Size reports the number of runs currently held.
func (a *MemoryAge) Size() int { return len(*a.runs.Load()) }

// IsMergeReady reports whether this age has accumulated enough runs to
// compact into the next age.
func (a *MemoryAge) IsMergeReady() bool { return a.Size() >= a.mergeFanIn }

// Query resolves keys against every run in this age, newest first, writing
// resolved ids and stopping early once every key has been found. before
// bounds visibility: entries at height >= before are treated as not yet
// committed, so a joiner never sees outputs its own block is about to add.
func (a *MemoryAge) Query(keys []types.OutPoint, ids []OutputId, found []bool, before int64) int {
	runs := *a.runs.Load()
	n := 0
	remaining := len(keys)
	for i := len(runs) - 1; i >= 0 && n < remaining; i-- {
		n += runs[i].Query(keys, ids, found, before)
	}
	return n
}

// Append publishes a new newest run.
func (a *MemoryAge) Append(run *MemoryRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := *a.runs.Load()
	next := append(append([]*MemoryRun(nil), cur...), run)
	a.runs.Store(&next)
}

// Compact merges the oldest mergeFanIn runs into one and appends the result
// to dst, removing the merged runs from a. It is a no-op if not yet
// IsMergeReady.
func (a *MemoryAge) Compact(dst *MemoryAge) {
	a.mu.Lock()
	cur := *a.runs.Load()
	if len(cur) < a.mergeFanIn {
		a.mu.Unlock()
		return
	}
	inputs := append([]*MemoryRun(nil), cur[:a.mergeFanIn]...)
	remaining := append([]*MemoryRun(nil), cur[a.mergeFanIn:]...)
	a.runs.Store(&remaining)
	a.mu.Unlock()

	merged := MergeMemoryRuns(inputs, dst.IsMutable())
	dst.Append(merged)
}

// EraseSince undoes every entry at height >= h across this age's runs,
// dropping any run left empty. It requires the age be mutable.
func (a *MemoryAge) EraseSince(h int64) {
	if !a.mutableAge {
		panic("utxo: EraseSince on immutable age")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := *a.runs.Load()
	kept := make([]*MemoryRun, 0, len(cur))
	for _, r := range cur {
		if r.endHeight > h {
			if r.EraseSince(h) {
				continue
			}
		}
		kept = append(kept, r)
	}
	a.runs.Store(&kept)
}
