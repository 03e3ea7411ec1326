package types

import (
	"strings"
	"testing"
)

func TestOutPoint_IsNull(t *testing.T) {
	if !NullOutPoint.IsNull() {
		t.Error("NullOutPoint should report IsNull")
	}

	nonNull := OutPoint{Hash: Hash{0x01}, Index: 0xFFFFFFFF}
	if nonNull.IsNull() {
		t.Error("non-zero hash with all-ones index should not be null")
	}

	nonNull2 := OutPoint{Index: 0}
	if nonNull2.IsNull() {
		t.Error("zero hash with index 0 should not be null")
	}
}

func TestOutPoint_String(t *testing.T) {
	o := OutPoint{Hash: Hash{31: 0xab}, Index: 3}
	s := o.String()
	if !strings.HasPrefix(s, "ab") {
		t.Errorf("String() should start with reversed-hex hash, got %s", s)
	}
	if !strings.HasSuffix(s, ":3") {
		t.Errorf("String() should end with ':3', got %s", s)
	}
}

func TestOutPoint_Compare(t *testing.T) {
	a := OutPoint{Hash: Hash{0: 0x01}, Index: 5}
	b := OutPoint{Hash: Hash{0: 0x01}, Index: 6}
	if a.Compare(b) >= 0 {
		t.Errorf("expected a < b when hashes equal and index smaller")
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected equal outpoints to compare 0")
	}
}
