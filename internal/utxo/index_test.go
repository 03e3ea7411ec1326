package utxo

import (
	"math"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

func TestIndex_AppendThenQuery(t *testing.T) {
	idx := NewIndex(2, 4)
	k := outpoint(1, 0)
	idx.Append([]OutputKV{{Key: k, Height: 10, Op: Add, Rid: 55}}, 10)

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	if n := idx.Query(keys, ids, math.MaxInt64); n != 1 || ids[0] != 55 {
		t.Fatalf("Query = %d %v, want 1 [55]", n, ids)
	}
}

func TestIndex_SpendInLaterAppendHidesOutput(t *testing.T) {
	idx := NewIndex(2, 4)
	k := outpoint(1, 0)
	idx.Append([]OutputKV{{Key: k, Height: 10, Op: Add, Rid: 55}}, 10)
	idx.Append([]OutputKV{{Key: k, Height: 11, Op: Spent, Rid: NoDetail}}, 11)

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	if n := idx.Query(keys, ids, math.MaxInt64); n != 0 {
		t.Fatalf("Query count = %d, want 0 once spent", n)
	}
}

func TestIndex_CompactMergesReadyAgeIntoNext(t *testing.T) {
	idx := NewIndex(2, 2)
	k := outpoint(1, 0)
	idx.Append([]OutputKV{{Key: k, Height: 1, Op: Add, Rid: 1}}, 1)
	idx.Append([]OutputKV{{Key: outpoint(2, 0), Height: 2, Op: Add, Rid: 2}}, 2)

	if !idx.ages[0].IsMergeReady() {
		t.Fatal("age 0 should be merge ready after two appends with fan-in 2")
	}

	idx.Compact()

	if idx.ages[0].Size() != 0 {
		t.Fatalf("age 0 size after compact = %d, want 0", idx.ages[0].Size())
	}
	if idx.ages[1].Size() != 1 {
		t.Fatalf("age 1 size after compact = %d, want 1", idx.ages[1].Size())
	}

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	if n := idx.Query(keys, ids, math.MaxInt64); n != 1 || ids[0] != 1 {
		t.Fatalf("Query after compact = %d %v, want 1 [1]", n, ids)
	}
}

func TestIndex_EraseSinceOnlyTouchesMutableAges(t *testing.T) {
	idx := NewIndex(2, 2)
	k := outpoint(3, 0)
	idx.Append([]OutputKV{{Key: k, Height: 9, Op: Add, Rid: 1}}, 9)

	idx.EraseSince(9)

	keys := []types.OutPoint{k}
	ids := make([]OutputId, 1)
	if n := idx.Query(keys, ids, math.MaxInt64); n != 0 {
		t.Fatalf("Query after EraseSince = %d, want 0", n)
	}
}
