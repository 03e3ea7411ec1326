// Package block defines block types, Merkle construction, and validation.
package block

import (
	"github.com/tobysharp/timechain/pkg/tx"
	"github.com/tobysharp/timechain/pkg/types"
)

// Block is a header paired with its transactions.
type Block struct {
	Header       *Header
	Transactions []*tx.Transaction
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, transactions []*tx.Transaction) *Block {
	return &Block{Header: header, Transactions: transactions}
}

// NoWitnessSize returns the serialized size of the block excluding witness
// data, the figure the 1,000,000-byte structural size limit applies to.
func (b *Block) NoWitnessSize() int {
	size := HeaderSize
	size += varIntSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		size += t.NoWitnessSize()
	}
	return size
}

// SerializedSize returns the witness-inclusive serialized size of the block.
func (b *Block) SerializedSize() int {
	size := HeaderSize
	size += varIntSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		size += t.SerializedSize()
	}
	return size
}

// WeightUnits returns 4*serialized_bytes - 3*witness_bytes for the whole
// block, the figure the 4,000,000 weight-unit limit applies to.
func (b *Block) WeightUnits() int {
	noWit := b.NoWitnessSize()
	full := b.SerializedSize()
	witnessBytes := full - noWit
	return 4*full - 3*witnessBytes
}

// TxIDAt returns the txid of the transaction at index i, for use as a
// Merkle leaf function.
func (b *Block) TxIDAt(i int) types.Hash {
	return b.Transactions[i].Hash()
}

// WitnessMerkleLeafAt returns the Merkle leaf for witness-root computation:
// the zero hash for the coinbase at index 0, and wtxid for every other
// transaction, per BIP141.
func (b *Block) WitnessMerkleLeafAt(i int) types.Hash {
	if i == 0 {
		return types.Hash{}
	}
	return b.Transactions[i].WitnessHash()
}

func varIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
