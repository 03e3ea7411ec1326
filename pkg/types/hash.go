// Package types defines core primitive types shared across the timechain engine.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value, stored in native (little-endian wire)
// byte order. String() prints it reversed, matching the big-endian display
// convention block explorers and RPCs use for block and transaction hashes.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash's native byte order.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// String returns the reversed-byte-order hex encoding.
func (h Hash) String() string {
	var rev [HashSize]byte
	for i := range h {
		rev[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(rev[:])
}

// MarshalJSON encodes the hash as its reversed-hex display string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a reversed-hex display string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	parsed, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HexToHash parses a reversed-hex display string (as produced by String())
// back into native byte order. Returns an error if the string is not exactly
// 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	for i := range b {
		h[HashSize-1-i] = b[i]
	}
	return h, nil
}

// Compare returns -1, 0, or 1 comparing the hash's native byte order,
// matching BigUint256's little-endian total order.
func (h Hash) Compare(o Hash) int {
	for i := HashSize - 1; i >= 0; i-- {
		if h[i] != o[i] {
			if h[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
