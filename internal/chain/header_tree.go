package chain

import "github.com/tobysharp/timechain/pkg/types"

// TreeNode is a putative (not yet committed) header, keyed by its own hash
// in HeaderTimechain's tree map. Nodes are never shared across branches —
// each fork is its own chain of TreeNode.Parent pointers back to the node
// rooted directly on the committed HeaderChain.
type TreeNode struct {
	Parent     *TreeNode
	Hash       types.Hash
	Context    HeaderContext
	RootHeight int64 // height of the earliest ancestor still in the tree (not the chain)
}
