package block

import (
	"github.com/tobysharp/timechain/pkg/crypto"
	"github.com/tobysharp/timechain/pkg/types"
)

// ComputeMerkleRoot builds a Merkle tree over leaf hashes supplied by
// leafFn(i) for i in [0,count), duplicating the last node of an odd-sized
// level. It returns the root and a unique flag that is false if any sibling
// pair at any level hashed identically — a red flag for the CVE-2012-2459
// duplicate-transaction malleability attack, where an attacker can add a
// duplicate transaction to change the Merkle root without changing the
// transaction set in a way full validation should accept.
//
// An empty leaf set yields the zero hash with unique=true. A single leaf
// yields that leaf's hash with unique=true (no pairing occurs).
func ComputeMerkleRoot(count int, leafFn func(i int) types.Hash) (root types.Hash, unique bool) {
	if count == 0 {
		return types.Hash{}, true
	}
	level := make([]types.Hash, count)
	for i := 0; i < count; i++ {
		level[i] = leafFn(i)
	}
	unique = true
	for len(level) > 1 {
		for i := 0; i+1 < len(level); i += 2 {
			if level[i] == level[i+1] {
				unique = false
			}
		}
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}
	return level[0], unique
}

// ComputeMerkleRootFromHashes is a convenience wrapper over a slice of
// already-computed leaf hashes.
func ComputeMerkleRootFromHashes(hashes []types.Hash) (types.Hash, bool) {
	return ComputeMerkleRoot(len(hashes), func(i int) types.Hash { return hashes[i] })
}
