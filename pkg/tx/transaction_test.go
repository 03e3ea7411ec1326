package tx

import (
	"bytes"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

func sampleTx() *Transaction {
	return &Transaction{
		Version: 1,
		Inputs: []Input{
			{
				PrevOut:         types.OutPoint{Hash: types.Hash{1, 2, 3}, Index: 0},
				SignatureScript: []byte{0x01, 0x02},
				Sequence:        0xFFFFFFFF,
			},
		},
		Outputs: []Output{
			{Value: 5000, PkScript: []byte{0x76, 0xa9, 0x14}},
		},
		LockTime: 0,
	}
}

func TestTransaction_SerializeDeserializeRoundTrip_NoWitness(t *testing.T) {
	want := sampleTx()
	buf := want.Serialize(true)
	got, n, err := DeserializeTransaction(buf)
	if err != nil {
		t.Fatalf("DeserializeTransaction: %v", err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d bytes, want %d", n, len(buf))
	}
	if got.Version != want.Version || got.LockTime != want.LockTime {
		t.Errorf("header mismatch: %+v vs %+v", got, want)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].PrevOut != want.Inputs[0].PrevOut {
		t.Errorf("input mismatch: %+v", got.Inputs)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Value != want.Outputs[0].Value {
		t.Errorf("output mismatch: %+v", got.Outputs)
	}
}

func TestTransaction_SerializeDeserializeRoundTrip_Witness(t *testing.T) {
	want := sampleTx()
	want.Inputs[0].Witness = [][]byte{{0xde, 0xad}, {0xbe, 0xef}}

	buf := want.Serialize(true)
	got, n, err := DeserializeTransaction(buf)
	if err != nil {
		t.Fatalf("DeserializeTransaction: %v", err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d bytes, want %d", n, len(buf))
	}
	if !got.IsWitness() {
		t.Fatal("deserialized transaction should carry witness data")
	}
	if len(got.Inputs[0].Witness) != 2 {
		t.Fatalf("witness stack length = %d, want 2", len(got.Inputs[0].Witness))
	}
	if !bytes.Equal(got.Inputs[0].Witness[0], []byte{0xde, 0xad}) {
		t.Errorf("witness[0] = %x", got.Inputs[0].Witness[0])
	}
}

func TestTransaction_NoWitnessSerializationOmitsWitness(t *testing.T) {
	withWit := sampleTx()
	withWit.Inputs[0].Witness = [][]byte{{0xde, 0xad, 0xbe, 0xef}}

	noWit := sampleTx() // identical transaction, never given witness data
	if !bytes.Equal(withWit.Serialize(false), noWit.Serialize(false)) {
		t.Error("legacy serialization must be identical regardless of witness data")
	}
}

func TestTransaction_Hash_IgnoresWitness(t *testing.T) {
	a := sampleTx()
	b := sampleTx()
	b.Inputs[0].Witness = [][]byte{{0x01}}

	if a.Hash() != b.Hash() {
		t.Error("txid must not depend on witness data")
	}
	if a.WitnessHash() == b.WitnessHash() {
		t.Error("wtxid must depend on witness data when present")
	}
}

func TestTransaction_WitnessHash_EqualsHashWithoutWitness(t *testing.T) {
	txn := sampleTx()
	if txn.Hash() != txn.WitnessHash() {
		t.Error("wtxid should equal txid when there is no witness data")
	}
}

func TestTransaction_IsCoinBase(t *testing.T) {
	cb := &Transaction{
		Inputs:  []Input{{PrevOut: types.NullOutPoint, SignatureScript: []byte{0x02, 0x01, 0x00}}},
		Outputs: []Output{{Value: 5_000_000_000}},
	}
	if !cb.IsCoinBase() {
		t.Error("single null-prevout input should be a coinbase")
	}
	if sampleTx().IsCoinBase() {
		t.Error("non-null prevout should not be a coinbase")
	}
}

func TestTransaction_WeightUnits_PureLegacy(t *testing.T) {
	txn := sampleTx()
	noWit := txn.NoWitnessSize()
	if got, want := txn.WeightUnits(), 4*noWit; got != want {
		t.Errorf("weight units for a non-witness tx = %d, want %d", got, want)
	}
}

func TestTransaction_WeightUnits_DiscountsWitness(t *testing.T) {
	txn := sampleTx()
	legacyWeight := txn.WeightUnits()

	txn.Inputs[0].Witness = [][]byte{{0, 1, 2, 3, 4, 5, 6, 7}}
	witWeight := txn.WeightUnits()

	if witWeight <= legacyWeight {
		t.Errorf("adding witness data should increase weight: got %d, was %d", witWeight, legacyWeight)
	}
	fullSize := txn.SerializedSize()
	if witWeight >= 4*fullSize {
		t.Error("witness bytes must be discounted relative to non-witness bytes")
	}
}

func TestDeserializeTransaction_TruncatedFails(t *testing.T) {
	buf := sampleTx().Serialize(true)
	if _, _, err := DeserializeTransaction(buf[:len(buf)-2]); err == nil {
		t.Error("truncated transaction bytes should fail to parse")
	}
}
