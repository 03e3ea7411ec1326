// Package tx defines the transaction wire format, identity hashing, and
// structural validation rules.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/tobysharp/timechain/pkg/crypto"
	"github.com/tobysharp/timechain/pkg/types"
)

// Input references a previously created output being spent. SignatureScript
// carries the legacy scriptSig bytes; Witness carries the segwit stack for
// this input (nil/empty for non-witness inputs).
type Input struct {
	PrevOut         types.OutPoint
	SignatureScript []byte
	Sequence        uint32
	Witness         [][]byte
}

// Output defines a new spendable value locked by PkScript.
type Output struct {
	Value    int64
	PkScript []byte
}

// Transaction is a parsed transaction. IsWitness reports whether any input
// carries witness data; IsCoinBase reports the single-null-input convention.
type Transaction struct {
	Version  uint32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32

	txid      *types.Hash
	wtxid     *types.Hash
	noWitLen  *int
}

// IsWitness reports whether this transaction carries any witness data.
func (t *Transaction) IsWitness() bool {
	for _, in := range t.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// IsCoinBase reports whether this is the single, null-prevout coinbase
// transaction that creates new coins and collects fees.
func (t *Transaction) IsCoinBase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevOut.IsNull()
}

func putVarInt(buf []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(buf, byte(v))
	case v <= 0xffff:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

func readVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("tx: varint: empty input")
	}
	switch b[0] {
	case 0xfd:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("tx: varint: truncated u16")
		}
		return uint64(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case 0xfe:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("tx: varint: truncated u32")
		}
		return uint64(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	case 0xff:
		if len(b) < 9 {
			return 0, 0, fmt.Errorf("tx: varint: truncated u64")
		}
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	default:
		return uint64(b[0]), 1, nil
	}
}

// witnessMarker is the 2-byte {0x00, 0x01} sequence that precedes a
// witness-carrying transaction's input count.
var witnessMarker = [2]byte{0x00, 0x01}

// Serialize encodes the transaction. When includeWitness is true and the
// transaction carries witness data, the segwit marker/flag and per-input
// witness stacks are included; otherwise the legacy (pre-segwit) encoding is
// produced, which is also what the txid is always computed over.
func (t *Transaction) Serialize(includeWitness bool) []byte {
	withWitness := includeWitness && t.IsWitness()

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)
	if withWitness {
		buf = append(buf, witnessMarker[:]...)
	}
	buf = putVarInt(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.Hash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = putVarInt(buf, uint64(len(in.SignatureScript)))
		buf = append(buf, in.SignatureScript...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}
	buf = putVarInt(buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Value))
		buf = putVarInt(buf, uint64(len(out.PkScript)))
		buf = append(buf, out.PkScript...)
	}
	if withWitness {
		for _, in := range t.Inputs {
			buf = putVarInt(buf, uint64(len(in.Witness)))
			for _, component := range in.Witness {
				buf = putVarInt(buf, uint64(len(component)))
				buf = append(buf, component...)
			}
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf
}

// DeserializeTransaction parses a transaction from its wire encoding and
// reports how many bytes were consumed.
func DeserializeTransaction(b []byte) (*Transaction, int, error) {
	const headerMin = 4
	if len(b) < headerMin {
		return nil, 0, fmt.Errorf("tx: truncated version")
	}
	off := 0
	version := binary.LittleEndian.Uint32(b[off:])
	off += 4

	withWitness := false
	if len(b) >= off+2 && b[off] == witnessMarker[0] && b[off+1] == witnessMarker[1] {
		withWitness = true
		off += 2
	}

	inCount, n, err := readVarInt(b[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("tx: input count: %w", err)
	}
	off += n

	t := &Transaction{Version: version, Inputs: make([]Input, inCount)}
	for i := range t.Inputs {
		if len(b) < off+36 {
			return nil, 0, fmt.Errorf("tx: truncated prevout at input %d", i)
		}
		copy(t.Inputs[i].PrevOut.Hash[:], b[off:off+32])
		t.Inputs[i].PrevOut.Index = binary.LittleEndian.Uint32(b[off+32 : off+36])
		off += 36

		scriptLen, n, err := readVarInt(b[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("tx: signature script length at input %d: %w", i, err)
		}
		off += n
		if uint64(len(b)-off) < scriptLen {
			return nil, 0, fmt.Errorf("tx: truncated signature script at input %d", i)
		}
		t.Inputs[i].SignatureScript = append([]byte(nil), b[off:off+int(scriptLen)]...)
		off += int(scriptLen)

		if len(b) < off+4 {
			return nil, 0, fmt.Errorf("tx: truncated sequence at input %d", i)
		}
		t.Inputs[i].Sequence = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}

	outCount, n, err := readVarInt(b[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("tx: output count: %w", err)
	}
	off += n

	t.Outputs = make([]Output, outCount)
	for i := range t.Outputs {
		if len(b) < off+8 {
			return nil, 0, fmt.Errorf("tx: truncated value at output %d", i)
		}
		t.Outputs[i].Value = int64(binary.LittleEndian.Uint64(b[off : off+8]))
		off += 8
		scriptLen, n, err := readVarInt(b[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("tx: pk_script length at output %d: %w", i, err)
		}
		off += n
		if uint64(len(b)-off) < scriptLen {
			return nil, 0, fmt.Errorf("tx: truncated pk_script at output %d", i)
		}
		t.Outputs[i].PkScript = append([]byte(nil), b[off:off+int(scriptLen)]...)
		off += int(scriptLen)
	}

	if withWitness {
		for i := range t.Inputs {
			count, n, err := readVarInt(b[off:])
			if err != nil {
				return nil, 0, fmt.Errorf("tx: witness count at input %d: %w", i, err)
			}
			off += n
			stack := make([][]byte, count)
			for j := range stack {
				clen, n, err := readVarInt(b[off:])
				if err != nil {
					return nil, 0, fmt.Errorf("tx: witness component length at input %d/%d: %w", i, j, err)
				}
				off += n
				if uint64(len(b)-off) < clen {
					return nil, 0, fmt.Errorf("tx: truncated witness component at input %d/%d", i, j)
				}
				stack[j] = append([]byte(nil), b[off:off+int(clen)]...)
				off += int(clen)
			}
			t.Inputs[i].Witness = stack
		}
	}

	if len(b) < off+4 {
		return nil, 0, fmt.Errorf("tx: truncated lock_time")
	}
	t.LockTime = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	return t, off, nil
}

// Hash returns the transaction's identity hash (txid): double-SHA256 of the
// legacy (no-witness) serialization. It is memoized on first use.
func (t *Transaction) Hash() types.Hash {
	if t.txid != nil {
		return *t.txid
	}
	h := crypto.DoubleSha256(t.Serialize(false))
	t.txid = &h
	return h
}

// WitnessHash returns the wtxid: double-SHA256 of the witness-inclusive
// serialization. For a transaction with no witness data this equals Hash().
func (t *Transaction) WitnessHash() types.Hash {
	if t.wtxid != nil {
		return *t.wtxid
	}
	h := crypto.DoubleSha256(t.Serialize(true))
	t.wtxid = &h
	return h
}

// NoWitnessSize returns the byte length of the legacy (no-witness) encoding,
// the figure the 1,000,000-byte structural size limit applies to.
func (t *Transaction) NoWitnessSize() int {
	if t.noWitLen != nil {
		return *t.noWitLen
	}
	n := len(t.Serialize(false))
	t.noWitLen = &n
	return n
}

// SerializedSize returns the byte length of the witness-inclusive encoding.
func (t *Transaction) SerializedSize() int {
	return len(t.Serialize(true))
}

// WeightUnits returns 4*serialized_bytes - 3*witness_bytes, the BIP141
// accounting unit the 4,000,000 block weight limit applies to.
func (t *Transaction) WeightUnits() int {
	noWit := t.NoWitnessSize()
	full := t.SerializedSize()
	witnessBytes := full - noWit
	return 4*full - 3*witnessBytes
}
