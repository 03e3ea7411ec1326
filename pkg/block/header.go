package block

import (
	"encoding/binary"
	"fmt"

	"github.com/tobysharp/timechain/pkg/crypto"
	"github.com/tobysharp/timechain/pkg/primitives"
	"github.com/tobysharp/timechain/pkg/types"
)

// HeaderSize is the fixed wire size of a Header: 80 bytes.
const HeaderSize = 80

// Header is the 80-byte block header. It carries no height field — a
// header's height is derived from its position in the timechain, not stored
// on the wire.
type Header struct {
	Version       int32
	PrevBlockHash types.Hash
	MerkleRoot    types.Hash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// Serialize encodes the header to its canonical 80-byte little-endian wire
// representation.
func (h *Header) Serialize() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlockHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf
}

// DeserializeHeader decodes an 80-byte wire representation into a Header.
func DeserializeHeader(b []byte) (*Header, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("block: header must be %d bytes, got %d", HeaderSize, len(b))
	}
	h := &Header{
		Version:   int32(binary.LittleEndian.Uint32(b[0:4])),
		Timestamp: binary.LittleEndian.Uint32(b[68:72]),
		Bits:      binary.LittleEndian.Uint32(b[72:76]),
		Nonce:     binary.LittleEndian.Uint32(b[76:80]),
	}
	copy(h.PrevBlockHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	return h, nil
}

// ComputeHash returns the double-SHA256 hash of the serialized header, the
// block's identity on the chain.
func (h *Header) ComputeHash() types.Hash {
	buf := h.Serialize()
	return crypto.DoubleSha256(buf[:])
}

// Target expands this header's compact bits into a full target value.
func (h *Header) Target() primitives.Target {
	return primitives.ExpandCompactTarget(h.Bits)
}

// GetWork returns the work implied by this header's target.
func (h *Header) GetWork() primitives.Work {
	return h.Target().GetWork()
}

// IsProofOfWork reports whether the header's hash satisfies its own target.
func (h *Header) IsProofOfWork() bool {
	return h.Target().HashSatisfies(h.ComputeHash())
}
