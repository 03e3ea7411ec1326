package utxo

import "testing"

func TestTable_AppendAndFetch(t *testing.T) {
	tbl := NewTable()
	id := tbl.Append(OutputDetail{Height: 100, Amount: 5000, PkScript: []byte{0x01}})
	got, err := tbl.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Amount != 5000 || got.Height != 100 {
		t.Fatalf("Fetch returned %+v", got)
	}
}

func TestTable_FetchNoDetailErrors(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Fetch(NoDetail); err == nil {
		t.Fatal("expected error fetching NoDetail id")
	}
}

func TestTable_CommitBeforeFreezesOlderRecords(t *testing.T) {
	tbl := NewTable()
	id1 := tbl.Append(OutputDetail{Height: 10})
	id2 := tbl.Append(OutputDetail{Height: 20})

	tbl.CommitBefore(15)

	if got, err := tbl.Fetch(id1); err != nil || got.Height != 10 {
		t.Fatalf("Fetch(id1) after commit = %+v, %v", got, err)
	}
	if got, err := tbl.Fetch(id2); err != nil || got.Height != 20 {
		t.Fatalf("Fetch(id2) after commit = %+v, %v", got, err)
	}
}

func TestTable_EraseSinceDropsTailRecords(t *testing.T) {
	tbl := NewTable()
	tbl.Append(OutputDetail{Height: 10})
	id2 := tbl.Append(OutputDetail{Height: 20})
	tbl.Append(OutputDetail{Height: 30})

	if err := tbl.EraseSince(20); err != nil {
		t.Fatalf("EraseSince: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	if _, err := tbl.Fetch(id2); err == nil {
		t.Fatal("expected erased id to no longer be fetchable")
	}
}
