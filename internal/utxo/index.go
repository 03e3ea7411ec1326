package utxo

import (
	"github.com/tobysharp/timechain/pkg/types"
)

// DefaultMergeFanIn is how many runs accumulate in an age before Compact
// folds them into the next, coarser age.
const DefaultMergeFanIn = 8

// Index is an ordered list of MemoryAges, newest (and mutable) first,
// oldest (and immutable) last. New KVs always land in age 0; Compact folds
// full ages into the next. Compaction runs synchronously in the caller of
// Compact; the index starts no goroutine of its own.
type Index struct {
	ages []*MemoryAge
}

// NewIndex returns an index with numAges levels, each fanning in
// mergeFanIn runs before compacting into the next. Age 0 is mutable; every
// later age is immutable.
func NewIndex(numAges, mergeFanIn int) *Index {
	if numAges < 1 {
		numAges = 1
	}
	idx := &Index{ages: make([]*MemoryAge, numAges)}
	for i := range idx.ages {
		idx.ages[i] = NewMemoryAge(mergeFanIn, i == 0)
	}
	return idx
}

// Query resolves keys across every age, newest to oldest, returning the
// number of keys resolved to a funding id visible strictly before height
// `before`.
func (idx *Index) Query(keys []types.OutPoint, ids []OutputId, before int64) int {
	found := make([]bool, len(keys))
	n := 0
	for _, age := range idx.ages {
		if n == len(keys) {
			break
		}
		n += age.Query(keys, ids, found, before)
	}
	return n
}

// Append inserts a freshly sorted batch of KVs as a new run in the newest
// age, covering the single height h.
func (idx *Index) Append(kvs []OutputKV, h int64) {
	run := NewMemoryRun(kvs, h, h+1, idx.ages[0].IsMutable())
	idx.ages[0].Append(run)
}

// EraseSince undoes every KV at height >= h held in a mutable age.
// Immutable ages are skipped without inspection: any data they hold at or
// after h stays in place, and no error or panic reports it.
func (idx *Index) EraseSince(h int64) {
	for _, age := range idx.ages {
		if !age.IsMutable() {
			continue
		}
		age.EraseSince(h)
	}
}

// Compact runs one round of fan-in compaction across every adjacent age
// pair that is ready, oldest boundary first so a long-accumulated tail
// drains before the next round starts filling it again.
func (idx *Index) Compact() {
	for i := len(idx.ages) - 2; i >= 0; i-- {
		src, dst := idx.ages[i], idx.ages[i+1]
		if src.IsMergeReady() {
			src.Compact(dst)
		}
	}
}
