package block

import (
	"bytes"
	"fmt"

	"github.com/tobysharp/timechain/pkg/crypto"
	"github.com/tobysharp/timechain/pkg/tx"
	"github.com/tobysharp/timechain/pkg/types"
)

// BlockErrorReason is the closed set of rule failures a block can be
// rejected with.
type BlockErrorReason int

const (
	_ BlockErrorReason = iota
	BadTransactionCount
	BadMerkleRoot
	BadSize
	BadCoinBase
	BadTransaction
	BadSigOpCount
	NonFinalTransaction
	BadCoinBaseHeight
	BadWitnessNonce
	BadWitnessMerkle
	UnexpectedWitness
	BadBlockWeight
	NotUnspent
	CoinbaseNotMature
)

func (r BlockErrorReason) String() string {
	switch r {
	case BadTransactionCount:
		return "BadTransactionCount"
	case BadMerkleRoot:
		return "BadMerkleRoot"
	case BadSize:
		return "BadSize"
	case BadCoinBase:
		return "BadCoinBase"
	case BadTransaction:
		return "BadTransaction"
	case BadSigOpCount:
		return "BadSigOpCount"
	case NonFinalTransaction:
		return "NonFinalTransaction"
	case BadCoinBaseHeight:
		return "BadCoinBaseHeight"
	case BadWitnessNonce:
		return "BadWitnessNonce"
	case BadWitnessMerkle:
		return "BadWitnessMerkle"
	case UnexpectedWitness:
		return "UnexpectedWitness"
	case BadBlockWeight:
		return "BadBlockWeight"
	case NotUnspent:
		return "NotUnspent"
	case CoinbaseNotMature:
		return "CoinbaseNotMature"
	default:
		return "Unknown"
	}
}

// BlockError reports which rule a block failed, wrapping the underlying
// per-transaction error when Reason is BadTransaction.
type BlockError struct {
	Reason BlockErrorReason
	TxIdx  int // -1 when the rule is not tied to a specific transaction
	Err    error
}

func (e *BlockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("block: %s at tx %d: %v", e.Reason, e.TxIdx, e.Err)
	}
	if e.TxIdx >= 0 {
		return fmt.Sprintf("block: %s at tx %d", e.Reason, e.TxIdx)
	}
	return fmt.Sprintf("block: %s", e.Reason)
}

func (e *BlockError) Unwrap() error { return e.Err }

// MaxNoWitnessBytes mirrors tx.MaxNoWitnessBytes: the structural size
// ceiling also applies to the whole block's no-witness serialization.
const MaxNoWitnessBytes = 1_000_000

// MaxSigOpsCost is the legacy sigop budget; the raw count is scaled by
// WitnessScaleFactor before comparison.
const MaxSigOpsCost = 80_000

// WitnessScaleFactor is the legacy-sigop-to-cost multiplier (BIP141).
const WitnessScaleFactor = 4

// MaxBlockWeight is the BIP141 weight-unit ceiling.
const MaxBlockWeight = 4_000_000

// witnessCommitmentHeader is the fixed byte prefix a coinbase output's
// pk_script must carry to be recognized as the BIP141 witness commitment.
var witnessCommitmentHeader = []byte{0x6a, 0x24, 0xaa, 0x21, 0xa9, 0xed}

// ValidateStructural applies the context-free structural rules: non-empty
// transaction set, Merkle root match (rejecting duplicate-sibling
// malleability), size limit, unique coinbase, per-transaction structural
// validity, and legacy sigop cost.
func (b *Block) ValidateStructural() error {
	if len(b.Transactions) == 0 {
		return &BlockError{Reason: BadTransactionCount, TxIdx: -1}
	}

	root, unique := ComputeMerkleRoot(len(b.Transactions), b.TxIDAt)
	if !unique || root != b.Header.MerkleRoot {
		return &BlockError{Reason: BadMerkleRoot, TxIdx: -1}
	}

	if b.NoWitnessSize() > MaxNoWitnessBytes {
		return &BlockError{Reason: BadSize, TxIdx: -1}
	}

	if !b.Transactions[0].IsCoinBase() {
		return &BlockError{Reason: BadCoinBase, TxIdx: 0}
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinBase() {
			return &BlockError{Reason: BadCoinBase, TxIdx: i + 1}
		}
	}

	for i, t := range b.Transactions {
		if err := t.ValidateStructure(); err != nil {
			return &BlockError{Reason: BadTransaction, TxIdx: i, Err: err}
		}
	}

	sigOps := 0
	for _, t := range b.Transactions {
		for _, in := range t.Inputs {
			sigOps += countLegacySigOps(in.SignatureScript)
		}
		for _, out := range t.Outputs {
			sigOps += countLegacySigOps(out.PkScript)
		}
	}
	if sigOps*WitnessScaleFactor > MaxSigOpsCost {
		return &BlockError{Reason: BadSigOpCount, TxIdx: -1}
	}

	return nil
}

// countLegacySigOps counts CheckSig/CheckSigVerify (1 each) and
// CheckMultiSig/CheckMultiSigVerify (20 each) occurrences by scanning for
// their literal opcode bytes. This is the legacy (pre-BIP16) accounting
// rule: it does not execute the script or track OP_PUSHDATA boundaries.
func countLegacySigOps(script []byte) int {
	const (
		opCheckSig         = 0xac
		opCheckSigVerify   = 0xad
		opCheckMultiSig    = 0xae
		opCheckMultiSigVerify = 0xaf
	)
	count := 0
	for _, op := range script {
		switch op {
		case opCheckSig, opCheckSigVerify:
			count++
		case opCheckMultiSig, opCheckMultiSigVerify:
			count += 20
		}
	}
	return count
}

// AncestryView supplies the timestamp history a block's contextual rules
// need: the median-time-past window and arbitrary historical timestamps.
type AncestryView interface {
	// TimestampAt returns the header timestamp at the given height.
	TimestampAt(height int64) (uint32, bool)
	// LastNTimestamps returns up to count timestamps ending at height,
	// most recent first, for median-time-past computation.
	LastNTimestamps(height int64, count int) []uint32
}

// ContextualParams carries the height-dependent activation state and
// median-time needed to validate a block against its position in the chain.
type ContextualParams struct {
	Height          int64
	HeaderTimestamp uint32
	MedianTimePast  uint32
	BIP34Active     bool
	BIP113Active    bool
	BIP141Active    bool
}

// medianTimePastWindow mirrors internal/consensus's header-level rule: both
// the header and the block contextual rules read the same eleven-timestamp
// window, just from different ancestry view implementations.
const medianTimePastWindow = 11

// ActivationHeights carries the per-network heights at which BIP34, BIP113,
// and BIP141 (segwit) become active for block-level contextual rules.
type ActivationHeights struct {
	BIP34  int64
	BIP113 int64
	BIP141 int64
}

// MainnetActivationHeights mirrors Bitcoin mainnet's historical activation
// heights for the rules ValidateContextual enforces.
var MainnetActivationHeights = ActivationHeights{BIP34: 227931, BIP113: 419328, BIP141: 481824}

// BuildContextualParams derives ContextualParams for a candidate block at
// height, whose parent's ancestry is described by view, under activations.
func BuildContextualParams(view AncestryView, height int64, headerTimestamp uint32, activations ActivationHeights) ContextualParams {
	return ContextualParams{
		Height:          height,
		HeaderTimestamp: headerTimestamp,
		MedianTimePast:  medianOfTimestamps(view.LastNTimestamps(height-1, medianTimePastWindow)),
		BIP34Active:     height >= activations.BIP34,
		BIP113Active:    height >= activations.BIP113,
		BIP141Active:    height >= activations.BIP141,
	}
}

// medianOfTimestamps returns the median of timestamps, 0 for an empty slice
// (no floor, so any positive timestamp passes finality checks).
func medianOfTimestamps(timestamps []uint32) uint32 {
	if len(timestamps) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), timestamps...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

func isFinal(t *tx.Transaction, p ContextualParams) bool {
	if t.LockTime == 0 {
		return true
	}
	allMaxSequence := true
	for _, in := range t.Inputs {
		if in.Sequence != 0xFFFFFFFF {
			allMaxSequence = false
			break
		}
	}
	if allMaxSequence {
		return true
	}
	const lockTimeThreshold = 500_000_000
	currentLockTime := p.HeaderTimestamp
	if p.BIP113Active {
		currentLockTime = p.MedianTimePast
	}
	if t.LockTime < lockTimeThreshold {
		return uint64(t.LockTime) < uint64(p.Height)
	}
	return t.LockTime < currentLockTime
}

// minimalHeightPush returns the minimal script push encoding of height, the
// prefix BIP34 requires at the start of a coinbase signature_script.
func minimalHeightPush(height int64) []byte {
	var le []byte
	v := height
	for v > 0 {
		le = append(le, byte(v&0xff))
		v >>= 8
	}
	if len(le) > 0 && le[len(le)-1]&0x80 != 0 {
		le = append(le, 0x00)
	}
	return append([]byte{byte(len(le))}, le...)
}

// ValidateContextual applies rules that depend on the block's position in
// the chain: transaction finality, BIP34 coinbase height encoding, the
// BIP141 witness commitment, and the overall weight limit.
func (b *Block) ValidateContextual(p ContextualParams) error {
	for i, t := range b.Transactions {
		if !isFinal(t, p) {
			return &BlockError{Reason: NonFinalTransaction, TxIdx: i}
		}
	}

	if p.BIP34Active {
		want := minimalHeightPush(p.Height)
		script := b.Transactions[0].Inputs[0].SignatureScript
		if len(script) < len(want) || !bytes.Equal(script[:len(want)], want) {
			return &BlockError{Reason: BadCoinBaseHeight, TxIdx: 0}
		}
	}

	if p.BIP141Active {
		if err := b.validateWitnessCommitment(); err != nil {
			return err
		}
	} else {
		for _, t := range b.Transactions {
			if t.IsWitness() {
				return &BlockError{Reason: UnexpectedWitness, TxIdx: -1}
			}
		}
	}

	if b.WeightUnits() > MaxBlockWeight {
		return &BlockError{Reason: BadBlockWeight, TxIdx: -1}
	}

	return nil
}

func (b *Block) validateWitnessCommitment() error {
	coinbase := b.Transactions[0]
	hasWitness := false
	for _, t := range b.Transactions {
		if t.IsWitness() {
			hasWitness = true
			break
		}
	}

	var commitment []byte
	for i := len(coinbase.Outputs) - 1; i >= 0; i-- {
		script := coinbase.Outputs[i].PkScript
		if len(script) >= len(witnessCommitmentHeader)+32 &&
			bytes.Equal(script[:len(witnessCommitmentHeader)], witnessCommitmentHeader) {
			commitment = script[len(witnessCommitmentHeader) : len(witnessCommitmentHeader)+32]
			break
		}
	}

	if commitment == nil {
		if hasWitness {
			return &BlockError{Reason: UnexpectedWitness, TxIdx: -1}
		}
		return nil
	}

	if len(coinbase.Inputs[0].Witness) != 1 || len(coinbase.Inputs[0].Witness[0]) != 32 {
		return &BlockError{Reason: BadWitnessNonce, TxIdx: 0}
	}
	reserved := coinbase.Inputs[0].Witness[0]

	witnessRoot, _ := ComputeMerkleRoot(len(b.Transactions), b.WitnessMerkleLeafAt)
	want := crypto.DoubleSha256(append(append([]byte{}, witnessRoot[:]...), reserved...))

	var got types.Hash
	copy(got[:], commitment)
	if got != want {
		return &BlockError{Reason: BadWitnessMerkle, TxIdx: -1}
	}
	return nil
}

// SpendingResolver resolves a previously validated, still-unspent output for
// the spending validation phase. Consumers typically back this with a
// SpendJoiner-driven UTXO view.
type SpendingResolver interface {
	Resolve(outpoint types.OutPoint) (out tx.FundingOutput, ok bool)
}

// ValidateSpending iterates every non-coinbase input in the block and
// requires resolver to resolve it to an unspent, sufficiently mature
// funding output.
func (b *Block) ValidateSpending(resolver SpendingResolver, height int64) error {
	for i, t := range b.Transactions {
		if t.IsCoinBase() {
			continue
		}
		for j, in := range t.Inputs {
			funding, ok := resolver.Resolve(in.PrevOut)
			if !ok {
				return &BlockError{Reason: NotUnspent, TxIdx: i,
					Err: fmt.Errorf("input %d: %s unresolved", j, in.PrevOut)}
			}
			if funding.FromCoinBase && funding.FundingHeight+tx.CoinbaseMaturity > height {
				return &BlockError{Reason: CoinbaseNotMature, TxIdx: i,
					Err: fmt.Errorf("input %d: funded at %d, spent at %d", j, funding.FundingHeight, height)}
			}
		}
	}
	return nil
}

// Hash returns the block's header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.ComputeHash()
}
