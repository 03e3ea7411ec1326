// Package utxo implements the sharded, append-only unspent-output database:
// a Table of output details addressed by stable ids, and an Index of
// time-ordered MemoryAges of sorted MemoryRuns that fan in and compact when
// Compact is called, fronted by a single Database facade.
package utxo

import "github.com/tobysharp/timechain/pkg/types"

// OutputOp distinguishes a funding event from a spending event for the same
// outpoint within a run.
type OutputOp uint8

const (
	Add OutputOp = iota
	Spent
)

func (op OutputOp) String() string {
	if op == Spent {
		return "Spent"
	}
	return "Add"
}

// OutputId addresses a record in the Table's logical stream. It is a plain
// slice index rather than the byte-offset encoding spec's arena-packed
// Table uses — see DESIGN.md: the externally observable contract (stable,
// comparable ids; a reserved "no detail" sentinel) doesn't depend on the
// particular addressing scheme.
type OutputId int64

// NoDetail is the reserved id for a Spent OutputKV, which cancels an Add
// rather than pointing at its own detail record.
const NoDetail OutputId = -1

// OutputKV is one entry in a sorted run: an outpoint, the height the event
// happened at, whether it was a funding or spending event, and (for Add) the
// Table id of its detail record.
type OutputKV struct {
	Key    types.OutPoint
	Height int64
	Op     OutputOp
	Rid    OutputId
}

// Less orders KVs primarily by key, then by height descending, so that
// within a sorted run a later Spent immediately precedes its earlier Add —
// the arrangement merge-time cancellation relies on.
func Less(a, b OutputKV) bool {
	if c := a.Key.Compare(b.Key); c != 0 {
		return c < 0
	}
	return a.Height > b.Height
}

// OutputDetail is the Table record funding an Add event: the data needed to
// answer a resolver query without re-reading the block.
type OutputDetail struct {
	Height   int64
	Amount   int64
	PkScript []byte
	Coinbase bool
}
