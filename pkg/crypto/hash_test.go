package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

func TestSha256_MatchesStdlib(t *testing.T) {
	input := []byte("hello")
	want := sha256.Sum256(input)
	got := Sha256(input)
	if got != types.Hash(want) {
		t.Errorf("Sha256(%q) = %x, want %x", input, got, want)
	}
}

func TestSha256_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	if Sha256(data) != Sha256(data) {
		t.Errorf("Sha256 is not deterministic")
	}
}

func TestSha256_DifferentInputs(t *testing.T) {
	if Sha256([]byte("input A")) == Sha256([]byte("input B")) {
		t.Error("different inputs produced the same hash")
	}
}

func TestDoubleSha256_MatchesTwoPasses(t *testing.T) {
	input := []byte("hello")
	first := sha256.Sum256(input)
	second := sha256.Sum256(first[:])
	got := DoubleSha256(input)
	if got != types.Hash(second) {
		t.Errorf("DoubleSha256(%q) = %x, want %x", input, got, second)
	}
}

func TestDoubleSha256_NotSameAsSingle(t *testing.T) {
	data := []byte("test data")
	if Sha256(data) == DoubleSha256(data) {
		t.Error("DoubleSha256 should not equal single Sha256")
	}
}

func TestHashConcat_EqualsManualDoubleHash(t *testing.T) {
	a := Sha256([]byte("left"))
	b := Sha256([]byte("right"))

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	want := DoubleSha256(buf[:])

	got := HashConcat(a, b)
	if got != want {
		t.Errorf("HashConcat = %x, want %x", got, want)
	}
}

func TestHashConcat_OrderMatters(t *testing.T) {
	a := Sha256([]byte("left"))
	b := Sha256([]byte("right"))
	if HashConcat(a, b) == HashConcat(b, a) {
		t.Error("HashConcat(a,b) should differ from HashConcat(b,a)")
	}
}
