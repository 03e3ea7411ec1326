package primitives

import "testing"

func TestUint256_AddSubWrap(t *testing.T) {
	sum := Max.Add(One)
	if sum != Zero {
		t.Errorf("Max+1 should wrap to Zero, got %s", sum)
	}
	diff := Zero.Sub(One)
	if diff != Max {
		t.Errorf("0-1 should wrap to Max, got %s", diff)
	}
}

func TestUint256_Cmp(t *testing.T) {
	a := FromUint64(5)
	b := FromUint64(10)
	if a.Cmp(b) >= 0 {
		t.Error("5 should be < 10")
	}
	if b.Cmp(a) <= 0 {
		t.Error("10 should be > 5")
	}
	if a.Cmp(a) != 0 {
		t.Error("5 should equal 5")
	}
}

func TestUint256_ShiftRoundtrip(t *testing.T) {
	v := FromUint64(0x0102030405060708)
	shifted := v.Lsh(72).Rsh(72)
	if shifted != v {
		t.Errorf("shift roundtrip mismatch: got %s, want %s", shifted, v)
	}
}

func TestUint256_LshOverflow(t *testing.T) {
	v := FromUint64(1)
	if v.Lsh(256) != Zero {
		t.Error("shifting by >= 256 should yield zero")
	}
}

func TestUint256_BytesLERoundtrip(t *testing.T) {
	var b [32]byte
	for i := range b {
		b[i] = byte(i + 1)
	}
	u := FromBytesLE(b)
	got := u.BytesLE()
	if got != b {
		t.Errorf("roundtrip mismatch: got %v, want %v", got, b)
	}
}

func TestUint256_Div(t *testing.T) {
	a := FromUint64(100)
	b := FromUint64(7)
	q, r := a.QuoRem(b)
	if q.Cmp(FromUint64(14)) != 0 || r.Cmp(FromUint64(2)) != 0 {
		t.Errorf("100/7 = %s rem %s, want 14 rem 2", q, r)
	}
}

func TestUint256_DivByZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on division by zero")
		}
	}()
	_ = One.Div(Zero)
}

func TestUint256_SignificantBits(t *testing.T) {
	if Zero.SignificantBits() != 0 {
		t.Errorf("Zero.SignificantBits() = %d, want 0", Zero.SignificantBits())
	}
	if FromUint64(1).SignificantBits() != 1 {
		t.Errorf("1.SignificantBits() = %d, want 1", FromUint64(1).SignificantBits())
	}
	if FromUint64(0xFF).SignificantBits() != 8 {
		t.Errorf("0xFF.SignificantBits() = %d, want 8", FromUint64(0xFF).SignificantBits())
	}
	if FromUint64(0x100).SignificantBits() != 9 {
		t.Errorf("0x100.SignificantBits() = %d, want 9", FromUint64(0x100).SignificantBits())
	}
}

func TestUint256_MulDivSmall(t *testing.T) {
	v := FromUint64(1000)
	mul := v.MulSmall(4)
	if mul.Cmp(FromUint64(4000)) != 0 {
		t.Errorf("1000*4 = %s, want 4000", mul)
	}
	div := mul.DivSmall(4)
	if div.Cmp(v) != 0 {
		t.Errorf("4000/4 = %s, want 1000", div)
	}
}
