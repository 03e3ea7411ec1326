// Package crypto provides the hashing primitives the timechain engine's
// consensus rules depend on.
package crypto

import (
	"crypto/sha256"

	"github.com/tobysharp/timechain/pkg/types"
)

// Sha256 computes a single SHA-256 hash of the input data.
func Sha256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleSha256 computes SHA-256 applied twice, the hash function used for
// block headers, transaction ids, and Merkle tree nodes throughout this
// protocol.
func DoubleSha256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// HashConcat double-SHA256-hashes the concatenation of two hashes. Used to
// build Merkle trees (transaction and witness).
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return DoubleSha256(buf[:])
}
