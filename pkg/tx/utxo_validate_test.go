package tx

import (
	"errors"
	"testing"

	"github.com/tobysharp/timechain/pkg/types"
)

type fakeUTXOProvider struct {
	byOutPoint map[types.OutPoint]FundingOutput
}

func (p *fakeUTXOProvider) Resolve(outpoint types.OutPoint) (FundingOutput, bool) {
	f, ok := p.byOutPoint[outpoint]
	return f, ok
}

func TestFee_Simple(t *testing.T) {
	txn := sampleTx()
	provider := &fakeUTXOProvider{byOutPoint: map[types.OutPoint]FundingOutput{
		txn.Inputs[0].PrevOut: {Value: 6000, FundingHeight: 10},
	}}

	fee, err := txn.Fee(provider, 100)
	if err != nil {
		t.Fatalf("Fee: %v", err)
	}
	if fee != 1000 {
		t.Errorf("fee = %d, want 1000", fee)
	}
}

func TestFee_InputNotFound(t *testing.T) {
	txn := sampleTx()
	provider := &fakeUTXOProvider{byOutPoint: map[types.OutPoint]FundingOutput{}}

	_, err := txn.Fee(provider, 100)
	var notFound *ErrInputNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *ErrInputNotFound, got %v", err)
	}
}

func TestFee_CoinbaseNotMature(t *testing.T) {
	txn := sampleTx()
	provider := &fakeUTXOProvider{byOutPoint: map[types.OutPoint]FundingOutput{
		txn.Inputs[0].PrevOut: {Value: 6000, FundingHeight: 10, FromCoinBase: true},
	}}

	// Spending at height 50: 10+100=110 > 50, not mature yet.
	_, err := txn.Fee(provider, 50)
	var notMature *ErrCoinbaseNotMature
	if !errors.As(err, &notMature) {
		t.Fatalf("expected *ErrCoinbaseNotMature, got %v", err)
	}
}

func TestFee_CoinbaseMatureAtExactBoundary(t *testing.T) {
	txn := sampleTx()
	provider := &fakeUTXOProvider{byOutPoint: map[types.OutPoint]FundingOutput{
		txn.Inputs[0].PrevOut: {Value: 6000, FundingHeight: 10, FromCoinBase: true},
	}}

	// funding_height + 100 == spend_height is allowed (<=, not <).
	if _, err := txn.Fee(provider, 110); err != nil {
		t.Errorf("spend at exact maturity boundary should succeed: %v", err)
	}
}

func TestFee_CoinbaseHasNoFee(t *testing.T) {
	cb := &Transaction{
		Inputs:  []Input{{PrevOut: types.NullOutPoint}},
		Outputs: []Output{{Value: 1}},
	}
	if _, err := cb.Fee(&fakeUTXOProvider{}, 1); err == nil {
		t.Error("computing a fee for a coinbase transaction should fail")
	}
}
