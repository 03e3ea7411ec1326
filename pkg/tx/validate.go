package tx

import "fmt"

// TransactionErrorReason is the closed set of structural rule failures a
// transaction can be rejected with. The zero value is never returned by a
// failing check; Err wraps a non-zero reason as an error.
type TransactionErrorReason int

const (
	_ TransactionErrorReason = iota
	EmptyInputs
	EmptyOutputs
	OversizedByteCount
	NegativeOutputValue
	OversizedOutputValue
	OversizedTotalOutputValues
	DuplicatedInput
	BadCoinBaseSigScriptSize
	NullPreviousOutput
)

func (r TransactionErrorReason) String() string {
	switch r {
	case EmptyInputs:
		return "EmptyInputs"
	case EmptyOutputs:
		return "EmptyOutputs"
	case OversizedByteCount:
		return "OversizedByteCount"
	case NegativeOutputValue:
		return "NegativeOutputValue"
	case OversizedOutputValue:
		return "OversizedOutputValue"
	case OversizedTotalOutputValues:
		return "OversizedTotalOutputValues"
	case DuplicatedInput:
		return "DuplicatedInput"
	case BadCoinBaseSigScriptSize:
		return "BadCoinBaseSigScriptSize"
	case NullPreviousOutput:
		return "NullPreviousOutput"
	default:
		return "Unknown"
	}
}

// TransactionError reports which structural rule a transaction failed, and
// at which input/output index when the rule is per-element.
type TransactionError struct {
	Reason TransactionErrorReason
	Index  int // -1 when the rule is not tied to a specific input/output
}

func (e *TransactionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("tx: %s at index %d", e.Reason, e.Index)
	}
	return fmt.Sprintf("tx: %s", e.Reason)
}

// MaxMoney is the maximum number of satoshi-equivalent units that can ever
// exist: 21 million coins at 100,000,000 units per coin.
const MaxMoney = 21_000_000 * 100_000_000

// MaxNoWitnessBytes is the structural size ceiling applied to a single
// transaction's legacy (no-witness) serialization.
const MaxNoWitnessBytes = 1_000_000

// ValidateStructure applies the ordered per-transaction structural rules.
// It does not consult the UTXO set, block context, or height.
func (t *Transaction) ValidateStructure() error {
	if len(t.Inputs) == 0 {
		return &TransactionError{Reason: EmptyInputs, Index: -1}
	}
	if len(t.Outputs) == 0 {
		return &TransactionError{Reason: EmptyOutputs, Index: -1}
	}
	if t.NoWitnessSize() > MaxNoWitnessBytes {
		return &TransactionError{Reason: OversizedByteCount, Index: -1}
	}

	var total int64
	for i, out := range t.Outputs {
		if out.Value < 0 {
			return &TransactionError{Reason: NegativeOutputValue, Index: i}
		}
		if out.Value > MaxMoney {
			return &TransactionError{Reason: OversizedOutputValue, Index: i}
		}
		total += out.Value
		if total > MaxMoney {
			return &TransactionError{Reason: OversizedTotalOutputValues, Index: i}
		}
	}

	seen := make(map[prevOutKey]struct{}, len(t.Inputs))
	for i, in := range t.Inputs {
		key := prevOutKey{in.PrevOut.Hash, in.PrevOut.Index}
		if _, dup := seen[key]; dup {
			return &TransactionError{Reason: DuplicatedInput, Index: i}
		}
		seen[key] = struct{}{}
	}

	if t.IsCoinBase() {
		n := len(t.Inputs[0].SignatureScript)
		if n < 2 || n > 100 {
			return &TransactionError{Reason: BadCoinBaseSigScriptSize, Index: 0}
		}
	} else {
		for i, in := range t.Inputs {
			if in.PrevOut.IsNull() {
				return &TransactionError{Reason: NullPreviousOutput, Index: i}
			}
		}
	}

	return nil
}

type prevOutKey struct {
	hash  [32]byte
	index uint32
}
