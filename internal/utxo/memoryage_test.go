package utxo

import (
	"math"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

func TestMemoryAge_AppendThenQuery(t *testing.T) {
	age := NewMemoryAge(4, true)
	k := outpoint(1, 0)
	age.Append(NewMemoryRun([]OutputKV{{Key: k, Height: 1, Op: Add, Rid: 99}}, 1, 2, true))

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	found := make([]bool, 1)
	if n := age.Query(keys, ids, found, math.MaxInt64); n != 1 || ids[0] != 99 {
		t.Fatalf("Query = %d %v, want 1 [99]", n, ids)
	}
}

func TestMemoryAge_QueryPrefersNewestRun(t *testing.T) {
	age := NewMemoryAge(4, true)
	k := outpoint(1, 0)
	age.Append(NewMemoryRun([]OutputKV{{Key: k, Height: 1, Op: Add, Rid: 1}}, 1, 2, true))
	age.Append(NewMemoryRun([]OutputKV{{Key: k, Height: 2, Op: Spent, Rid: NoDetail}}, 2, 3, true))

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	found := make([]bool, 1)
	n := age.Query(keys, ids, found, math.MaxInt64)
	if n != 0 {
		t.Fatalf("Query count = %d, want 0 since the newest run shows the output spent", n)
	}
}

func TestMemoryAge_IsMergeReady(t *testing.T) {
	age := NewMemoryAge(2, true)
	if age.IsMergeReady() {
		t.Fatal("empty age should not be merge ready")
	}
	age.Append(NewMemoryRun(nil, 0, 1, true))
	if age.IsMergeReady() {
		t.Fatal("one run should not be merge ready with fan-in 2")
	}
	age.Append(NewMemoryRun(nil, 1, 2, true))
	if !age.IsMergeReady() {
		t.Fatal("two runs should be merge ready with fan-in 2")
	}
}

func TestMemoryAge_CompactMovesRunsToDest(t *testing.T) {
	src := NewMemoryAge(2, true)
	dst := NewMemoryAge(4, false)

	k := outpoint(5, 0)
	src.Append(NewMemoryRun([]OutputKV{{Key: k, Height: 1, Op: Add, Rid: 1}}, 1, 2, true))
	src.Append(NewMemoryRun(nil, 2, 3, true))

	src.Compact(dst)

	if src.Size() != 0 {
		t.Fatalf("src.Size() after compact = %d, want 0", src.Size())
	}
	if dst.Size() != 1 {
		t.Fatalf("dst.Size() after compact = %d, want 1", dst.Size())
	}
}

func TestMemoryAge_EraseSinceRemovesEmptiedRuns(t *testing.T) {
	age := NewMemoryAge(8, true)
	age.Append(NewMemoryRun([]OutputKV{{Key: outpoint(1, 0), Height: 5, Op: Add}}, 5, 6, true))
	age.Append(NewMemoryRun([]OutputKV{{Key: outpoint(2, 0), Height: 1, Op: Add}}, 1, 2, true))

	age.EraseSince(5)

	if age.Size() != 1 {
		t.Fatalf("Size() after EraseSince = %d, want 1", age.Size())
	}
}
