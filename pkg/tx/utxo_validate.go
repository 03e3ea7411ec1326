package tx

import (
	"fmt"
	"math"

	"github.com/tobysharp/timechain/pkg/types"
)

// FundingOutput describes the output a spending input resolves to: its
// value and the height at which it was mined (needed for coinbase maturity).
type FundingOutput struct {
	Value          int64
	FundingHeight  int64
	FromCoinBase   bool
}

// UTXOProvider resolves an input's previous_output to its funding output.
// Implementations report ok=false for missing or already-spent outputs.
type UTXOProvider interface {
	Resolve(outpoint types.OutPoint) (out FundingOutput, ok bool)
}

// CoinbaseMaturity is the number of confirmations a coinbase output must
// accumulate before it can be spent.
const CoinbaseMaturity = 100

// ErrInputNotFound reports a previous_output the UTXO view cannot resolve.
type ErrInputNotFound struct {
	Index    int
	PrevOut  types.OutPoint
}

func (e *ErrInputNotFound) Error() string {
	return fmt.Sprintf("tx: input %d: previous output %s not found", e.Index, e.PrevOut)
}

// ErrCoinbaseNotMature reports a coinbase output spent before its maturity
// window has elapsed.
type ErrCoinbaseNotMature struct {
	Index         int
	FundingHeight int64
	SpendHeight   int64
}

func (e *ErrCoinbaseNotMature) Error() string {
	return fmt.Sprintf("tx: input %d: coinbase funded at height %d not mature at height %d",
		e.Index, e.FundingHeight, e.SpendHeight)
}

// ErrInputValueOverflow reports the sum of resolved input values overflowing
// the signed 64-bit range used for satoshi-equivalent accounting.
var errInputValueOverflow = fmt.Errorf("tx: input values overflow")

// Fee resolves every non-coinbase input against provider and returns the
// transaction fee: sum(inputs) - sum(outputs). spendHeight is the height at
// which this transaction is being included, used for the coinbase-maturity
// check.
func (t *Transaction) Fee(provider UTXOProvider, spendHeight int64) (int64, error) {
	if t.IsCoinBase() {
		return 0, fmt.Errorf("tx: coinbase transactions have no fee")
	}

	var totalIn int64
	for i, in := range t.Inputs {
		funding, ok := provider.Resolve(in.PrevOut)
		if !ok {
			return 0, &ErrInputNotFound{Index: i, PrevOut: in.PrevOut}
		}
		if funding.FromCoinBase && funding.FundingHeight+CoinbaseMaturity > spendHeight {
			return 0, &ErrCoinbaseNotMature{Index: i, FundingHeight: funding.FundingHeight, SpendHeight: spendHeight}
		}
		if totalIn > math.MaxInt64-funding.Value {
			return 0, errInputValueOverflow
		}
		totalIn += funding.Value
	}

	var totalOut int64
	for _, out := range t.Outputs {
		totalOut += out.Value
	}

	return totalIn - totalOut, nil
}
