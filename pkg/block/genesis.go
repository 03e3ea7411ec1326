package block

import "github.com/tobysharp/timechain/pkg/types"

// MainnetGenesisHeader returns the Bitcoin mainnet genesis block header, the
// fixed starting point HeaderTimechain.AddGenesis seeds a fresh mainnet
// chain with. Its hash is the well-known
// 000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f vector.
func MainnetGenesisHeader() *Header {
	merkleRoot, err := types.HexToHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	if err != nil {
		panic("block: malformed genesis merkle root literal")
	}
	return &Header{
		Version:    1,
		MerkleRoot: merkleRoot,
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	}
}
