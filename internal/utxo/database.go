package utxo

import (
	"math"
	"sort"
	"sync"

	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/tx"
	"github.com/tobysharp/timechain/pkg/types"
)

// Database is the unspent-output store: a Table of output details addressed
// by OutputId, and an Index of sorted event runs used to resolve an
// outpoint to its funding id. Append is lock-free with respect to readers
// (the Index and Table both publish via atomic snapshots); EraseSince takes
// the write lock since it must coordinate table and index together.
type Database struct {
	table *Table
	index *Index

	mu sync.RWMutex
}

// NewDatabase returns an empty database with the given index geometry.
func NewDatabase(numAges, mergeFanIn int) *Database {
	return &Database{table: NewTable(), index: NewIndex(numAges, mergeFanIn)}
}

// Append records every output created and every output spent by block at
// height as a new run in the index's newest age.
func (d *Database) Append(blk *block.Block, height int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var kvs []OutputKV
	for _, t := range blk.Transactions {
		txid := t.Hash()
		coinbase := t.IsCoinBase()
		for i, out := range t.Outputs {
			rid := d.table.Append(OutputDetail{
				Height:   height,
				Amount:   out.Value,
				PkScript: out.PkScript,
				Coinbase: coinbase,
			})
			kvs = append(kvs, OutputKV{
				Key:    types.OutPoint{Hash: txid, Index: uint32(i)},
				Height: height,
				Op:     Add,
				Rid:    rid,
			})
		}
		if coinbase {
			continue
		}
		for _, in := range t.Inputs {
			kvs = append(kvs, OutputKV{Key: in.PrevOut, Height: height, Op: Spent, Rid: NoDetail})
		}
	}

	d.index.Append(kvs, height)
}

// Query resolves each key to the OutputId of its funding Add record, if
// still unspent and visible strictly before height `before`. It returns the
// number of keys resolved.
func (d *Database) Query(keys []types.OutPoint, ids []OutputId, before int64) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Query(keys, ids, before)
}

// Fetch retrieves the detail record for each id, writing a zero OutputDetail
// and recording the index for any id that can't be resolved (NoDetail, or
// out of range). It returns the count of ids successfully fetched.
func (d *Database) Fetch(ids []OutputId, out []OutputDetail) (int, []int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var misses []int
	n := 0
	for i, id := range ids {
		detail, err := d.table.Fetch(id)
		if err != nil {
			out[i] = OutputDetail{}
			misses = append(misses, i)
			continue
		}
		out[i] = detail
		n++
	}
	return n, misses
}

// EraseSince undoes every Append at height >= h: used when a reorg
// invalidates the recent tip. h must fall within the mutable window,
// otherwise the corresponding data has already been compacted into an
// immutable age and can no longer be undone.
func (d *Database) EraseSince(h int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.index.EraseSince(h)
	_ = d.table.EraseSince(h)
}

// Compact runs one round of fan-in compaction synchronously.
func (d *Database) Compact() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.index.Compact()
}

// Resolve implements tx.UTXOProvider and block.SpendingResolver: it looks
// up outpoint's funding output, reporting ok=false if it is missing or
// already spent.
func (d *Database) Resolve(outpoint types.OutPoint) (tx.FundingOutput, bool) {
	keys := []types.OutPoint{outpoint}
	ids := make([]OutputId, 1)
	if d.Query(keys, ids, math.MaxInt64) == 0 {
		return tx.FundingOutput{}, false
	}

	d.mu.RLock()
	detail, err := d.table.Fetch(ids[0])
	d.mu.RUnlock()
	if err != nil {
		return tx.FundingOutput{}, false
	}

	return tx.FundingOutput{
		Value:         detail.Amount,
		FundingHeight: detail.Height,
		FromCoinBase:  detail.Coinbase,
	}, true
}

// SortKeys orders outpoints the way the index expects for a batched Query,
// which improves locality when resolving many keys against the same runs.
func SortKeys(keys []types.OutPoint) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
}
