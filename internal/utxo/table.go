package utxo

import "fmt"

// Table is append-only storage for OutputDetail records: a committed,
// immutable prefix plus an in-memory tail of records not yet old enough to
// be considered permanent. Records are addressed by their OutputId, which
// for the tail is simply its position past the committed prefix.
type Table struct {
	committed []OutputDetail
	tail      []OutputDetail
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Append adds a detail record to the tail and returns its id.
func (t *Table) Append(d OutputDetail) OutputId {
	t.tail = append(t.tail, d)
	return OutputId(len(t.committed) + len(t.tail) - 1)
}

// Fetch retrieves a detail record by id.
func (t *Table) Fetch(id OutputId) (OutputDetail, error) {
	if id == NoDetail {
		return OutputDetail{}, fmt.Errorf("utxo: table: id refers to a spent entry with no detail")
	}
	i := int(id)
	if i < 0 || i >= len(t.committed)+len(t.tail) {
		return OutputDetail{}, fmt.Errorf("utxo: table: id %d out of range", id)
	}
	if i < len(t.committed) {
		return t.committed[i], nil
	}
	return t.tail[i-len(t.committed)], nil
}

// EraseSince drops every tail record funded at height >= H, used when a
// reorg invalidates recent blocks. H must fall within the uncommitted tail —
// committed records are assumed final.
func (t *Table) EraseSince(h int64) error {
	for i, d := range t.tail {
		if d.Height >= h {
			t.tail = t.tail[:i]
			return nil
		}
	}
	return nil
}

// CommitBefore freezes every tail record funded strictly before height h
// into the committed prefix, shrinking the mutable tail.
func (t *Table) CommitBefore(h int64) {
	i := 0
	for i < len(t.tail) && t.tail[i].Height < h {
		i++
	}
	t.committed = append(t.committed, t.tail[:i]...)
	t.tail = t.tail[i:]
}

// Len reports the total number of records, committed and tail.
func (t *Table) Len() int { return len(t.committed) + len(t.tail) }
