// Package spend drives the funding-output join for a block being validated:
// it batches every non-coinbase input's previous_output against the UTXO
// database in one pass rather than resolving each input independently, and
// hands the resolved funding records to a validation stage as they become
// available.
package spend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tobysharp/timechain/internal/utxo"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/tx"
	"github.com/tobysharp/timechain/pkg/types"
)

// State is a stage in a Joiner's lifecycle. Stages execute strictly in
// order; Error is reachable from any of them and is terminal.
type State int

const (
	StateInit State = iota
	StateParsed
	StateAppended
	StateQueried
	StateFetched
	StateJoined
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateParsed:
		return "parsed"
	case StateAppended:
		return "appended"
	case StateQueried:
		return "queried"
	case StateFetched:
		return "fetched"
	case StateJoined:
		return "joined"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SpendRecord is the merged view of one spending input and the output it
// consumes, handed to a callback during Join.
type SpendRecord struct {
	FundingHeight   int64
	FromCoinBase    bool
	Amount          int64
	PubKeyScript    []byte
	Tx              *tx.Transaction
	TxIndex         int
	SpendInputIndex int
}

type inputRef struct {
	txIndex    int
	inputIndex int
}

// Joiner carries one block's non-coinbase inputs through Append, Query and
// Fetch against a UTXO database, then Join pairs each input with its
// resolved funding output. A Joiner is not safe for concurrent use from more
// than one goroutine at a time; Pipeline serializes access to each job.
type Joiner struct {
	mu   sync.Mutex
	cond *sync.Cond

	db     *utxo.Database
	block  *block.Block
	height int64

	state State
	err   error

	inputs  []inputRef
	keys    []types.OutPoint
	rids    []utxo.OutputId
	details []utxo.OutputDetail
}

// NewJoiner creates a joiner for block at height and immediately parses its
// inputs, leaving it in StateParsed. A block with no spending inputs is
// parsed the same way and passes through every later stage with nothing to
// resolve.
func NewJoiner(db *utxo.Database, blk *block.Block, height int64) *Joiner {
	j := &Joiner{db: db, block: blk, height: height}
	j.cond = sync.NewCond(&j.mu)
	j.parse()
	return j
}

// Height reports the block height this joiner was created for; it is the
// sort key for pipeline scheduling.
func (j *Joiner) Height() int64 { return j.height }

// State reports the joiner's current stage.
func (j *Joiner) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err reports the error that moved the joiner into StateError, if any.
func (j *Joiner) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Joiner) fail(err error) {
	j.state = StateError
	j.err = err
	j.cond.Broadcast()
}

// parse enumerates every non-coinbase input as a (txIndex, inputIndex) pair
// next to the key it spends, then sorts both together by key so Query can
// walk the database's buckets with good locality.
func (j *Joiner) parse() {
	if j.state != StateInit {
		panic("spend: joiner: parse called out of order")
	}
	for txIdx, t := range j.block.Transactions {
		if t.IsCoinBase() {
			continue
		}
		for inIdx, in := range t.Inputs {
			j.inputs = append(j.inputs, inputRef{txIndex: txIdx, inputIndex: inIdx})
			j.keys = append(j.keys, in.PrevOut)
		}
	}
	sortInputsByKey(j.keys, j.inputs)
	j.state = StateParsed
	j.cond.Broadcast()
}

// Append records the block's own effects (outputs created, outputs spent)
// into the database. Ordering requirement: the caller must not call Append
// for height h until every Append for height < h has completed, since the
// database's visibility window depends on height-ordered arrival.
func (j *Joiner) Append() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateParsed {
		panic("spend: joiner: append called out of order")
	}
	j.db.Append(j.block, j.height)
	j.state = StateAppended
	j.cond.Broadcast()
}

// Query resolves every spent key to the OutputId of its funding record,
// excluding anything created at or after this joiner's own height. It fails
// if any key cannot be resolved (spent-twice or nonexistent output).
func (j *Joiner) Query() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateAppended {
		panic("spend: joiner: query called out of order")
	}
	j.rids = make([]utxo.OutputId, len(j.keys))
	n := j.db.Query(j.keys, j.rids, j.height)
	if n != len(j.keys) {
		j.fail(fmt.Errorf("spend: joiner: resolved %d of %d funding outputs at height %d", n, len(j.keys), j.height))
		return j.err
	}
	j.keys = nil
	sortRidsByInput(j.rids, j.inputs)
	j.state = StateQueried
	j.cond.Broadcast()
	return nil
}

// Fetch retrieves the detail record for every resolved id.
func (j *Joiner) Fetch() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateQueried {
		panic("spend: joiner: fetch called out of order")
	}
	j.details = make([]utxo.OutputDetail, len(j.rids))
	n, misses := j.db.Fetch(j.rids, j.details)
	if len(misses) > 0 {
		j.fail(fmt.Errorf("spend: joiner: fetch missed %d of %d records at height %d", len(j.rids)-n, len(j.rids), j.height))
		return j.err
	}
	j.rids = nil
	j.state = StateFetched
	j.cond.Broadcast()
	return nil
}

// Join pairs every spending input with its resolved funding detail and
// invokes callback once per pair. The block reference is released
// afterwards so the joiner doesn't keep it alive past validation.
func (j *Joiner) Join(callback func(SpendRecord)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateFetched {
		panic("spend: joiner: join called out of order")
	}
	for i, d := range j.details {
		ref := j.inputs[i]
		if callback != nil {
			callback(SpendRecord{
				FundingHeight:   d.Height,
				FromCoinBase:    d.Coinbase,
				Amount:          d.Amount,
				PubKeyScript:    d.PkScript,
				Tx:              j.block.Transactions[ref.txIndex],
				TxIndex:         ref.txIndex,
				SpendInputIndex: ref.inputIndex,
			})
		}
	}
	j.inputs = nil
	j.details = nil
	j.block = nil
	j.state = StateJoined
	j.cond.Broadcast()
}

// Cancel moves the joiner directly to StateError, used to unblock anyone
// waiting on it when the owning pipeline is shutting down.
func (j *Joiner) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateJoined && j.state != StateError {
		j.fail(fmt.Errorf("spend: joiner: cancelled at height %d", j.height))
	}
}

// readyToAdvance reports whether the joiner can make progress on its own.
// The only stage gated on anything external is Parsed -> Appended, which
// must wait until every earlier height has been appended.
func (j *Joiner) readyToAdvance(nextAppendHeight int64) bool {
	switch j.state {
	case StateParsed:
		return j.height == nextAppendHeight
	case StateAppended, StateQueried:
		return true
	default:
		return false
	}
}

// joinReady reports whether the joiner has reached the handoff point where
// a validation stage, not the pipeline, drives the remaining work.
func (j *Joiner) joinReady() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == StateFetched
}

// WaitForFetch blocks until the joiner reaches StateFetched or StateError.
// It is the synchronization point a validation stage uses to obtain a
// joiner's resolved outputs without polling: the pipeline's workers
// broadcast on every transition.
func (j *Joiner) WaitForFetch() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.state != StateFetched && j.state != StateError {
		j.cond.Wait()
	}
	if j.state == StateError {
		return j.err
	}
	return nil
}

// advance runs exactly one stage transition.
func (j *Joiner) advance() error {
	switch j.State() {
	case StateParsed:
		j.Append()
		return nil
	case StateAppended:
		return j.Query()
	case StateQueried:
		return j.Fetch()
	default:
		return nil
	}
}

func sortInputsByKey(keys []types.OutPoint, inputs []inputRef) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return keys[idx[a]].Compare(keys[idx[b]]) < 0 })
	applyPermutation(idx, keys, inputs)
}

func sortRidsByInput(rids []utxo.OutputId, inputs []inputRef) {
	idx := make([]int, len(inputs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return inputLess(inputs[idx[a]], inputs[idx[b]]) })
	applyPermutation(idx, rids, inputs)
}

func inputLess(a, b inputRef) bool {
	if a.txIndex != b.txIndex {
		return a.txIndex < b.txIndex
	}
	return a.inputIndex < b.inputIndex
}

// applyPermutation reorders two parallel slices by the same index
// permutation. Go has no cheap in-place two-vector cycle rotation the way
// the original's template did; building fresh backing arrays is clearer and
// the extra allocation is a single pass over the input count.
func applyPermutation[T1, T2 any](idx []int, a []T1, b []T2) {
	na := make([]T1, len(a))
	nb := make([]T2, len(b))
	for i, src := range idx {
		na[i] = a[src]
		nb[i] = b[src]
	}
	copy(a, na)
	copy(b, nb)
}
