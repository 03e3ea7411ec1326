package tx

import (
	"errors"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

func reasonOf(t *testing.T, err error) TransactionErrorReason {
	t.Helper()
	var te *TransactionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransactionError, got %v (%T)", err, err)
	}
	return te.Reason
}

func TestValidateStructure_Valid(t *testing.T) {
	if err := sampleTx().ValidateStructure(); err != nil {
		t.Errorf("sample transaction should validate: %v", err)
	}
}

func TestValidateStructure_EmptyInputs(t *testing.T) {
	txn := sampleTx()
	txn.Inputs = nil
	if got := reasonOf(t, txn.ValidateStructure()); got != EmptyInputs {
		t.Errorf("reason = %s, want EmptyInputs", got)
	}
}

func TestValidateStructure_EmptyOutputs(t *testing.T) {
	txn := sampleTx()
	txn.Outputs = nil
	if got := reasonOf(t, txn.ValidateStructure()); got != EmptyOutputs {
		t.Errorf("reason = %s, want EmptyOutputs", got)
	}
}

func TestValidateStructure_OversizedByteCount(t *testing.T) {
	txn := sampleTx()
	txn.Inputs[0].SignatureScript = make([]byte, MaxNoWitnessBytes+1)
	if got := reasonOf(t, txn.ValidateStructure()); got != OversizedByteCount {
		t.Errorf("reason = %s, want OversizedByteCount", got)
	}
}

func TestValidateStructure_NegativeOutputValue(t *testing.T) {
	txn := sampleTx()
	txn.Outputs[0].Value = -1
	if got := reasonOf(t, txn.ValidateStructure()); got != NegativeOutputValue {
		t.Errorf("reason = %s, want NegativeOutputValue", got)
	}
}

func TestValidateStructure_OversizedOutputValue(t *testing.T) {
	txn := sampleTx()
	txn.Outputs[0].Value = MaxMoney + 1
	if got := reasonOf(t, txn.ValidateStructure()); got != OversizedOutputValue {
		t.Errorf("reason = %s, want OversizedOutputValue", got)
	}
}

func TestValidateStructure_OversizedTotalOutputValues(t *testing.T) {
	txn := sampleTx()
	txn.Outputs = []Output{
		{Value: MaxMoney},
		{Value: 1},
	}
	if got := reasonOf(t, txn.ValidateStructure()); got != OversizedTotalOutputValues {
		t.Errorf("reason = %s, want OversizedTotalOutputValues", got)
	}
}

func TestValidateStructure_DuplicatedInput(t *testing.T) {
	txn := sampleTx()
	txn.Inputs = append(txn.Inputs, txn.Inputs[0])
	if got := reasonOf(t, txn.ValidateStructure()); got != DuplicatedInput {
		t.Errorf("reason = %s, want DuplicatedInput", got)
	}
}

func TestValidateStructure_BadCoinBaseSigScriptSize(t *testing.T) {
	cb := &Transaction{
		Inputs:  []Input{{PrevOut: types.NullOutPoint, SignatureScript: []byte{0x01}}},
		Outputs: []Output{{Value: 1}},
	}
	if got := reasonOf(t, cb.ValidateStructure()); got != BadCoinBaseSigScriptSize {
		t.Errorf("reason = %s, want BadCoinBaseSigScriptSize", got)
	}

	cbTooLarge := &Transaction{
		Inputs:  []Input{{PrevOut: types.NullOutPoint, SignatureScript: make([]byte, 101)}},
		Outputs: []Output{{Value: 1}},
	}
	if got := reasonOf(t, cbTooLarge.ValidateStructure()); got != BadCoinBaseSigScriptSize {
		t.Errorf("reason = %s, want BadCoinBaseSigScriptSize", got)
	}
}

func TestValidateStructure_NullPreviousOutput(t *testing.T) {
	txn := sampleTx()
	txn.Inputs = append(txn.Inputs, Input{PrevOut: types.NullOutPoint})
	if got := reasonOf(t, txn.ValidateStructure()); got != NullPreviousOutput {
		t.Errorf("reason = %s, want NullPreviousOutput", got)
	}
}
