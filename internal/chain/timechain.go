package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tobysharp/timechain/pkg/types"
)

// ErrParentNotFound is returned by Add when neither the chain nor the tree
// holds a header matching the candidate's prev_block_hash at the expected
// height.
var ErrParentNotFound = errors.New("chain: parent not found in chain or tree")

// Position locates a HeaderContext: either a committed chain height, or a
// tree node keyed by hash.
type Position struct {
	InChain     bool
	ChainHeight int64
	TreeHash    types.Hash
}

// DefaultMaxKeepDepth bounds how many blocks of history a losing fork is
// kept around for, in case of a later re-reorg back onto it.
const DefaultMaxKeepDepth = 100

// HeaderTimechain composes a committed HeaderChain with a branching
// HeaderTree of candidate forks. It is the single authority for "what is
// the current heaviest chain", performing branch-to-chain reorgs whenever a
// tree branch's total work overtakes the chain tip, and pruning tree nodes
// that have fallen too far behind to matter.
type HeaderTimechain struct {
	mu sync.RWMutex

	chain *HeaderChain
	tree  map[types.Hash]*TreeNode

	maxKeepDepth  int64
	minRootHeight int64
}

// NewHeaderTimechain returns an empty timechain. Call AddGenesis before any
// other Add.
func NewHeaderTimechain(maxKeepDepth int64) *HeaderTimechain {
	return &HeaderTimechain{
		chain:        NewHeaderChain(),
		tree:         make(map[types.Hash]*TreeNode),
		maxKeepDepth: maxKeepDepth,
	}
}

// Height returns the current committed chain tip height, or -1 if empty.
func (tc *HeaderTimechain) Height() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return int64(tc.chain.TipHeight())
}

// TipContext returns the committed chain's tip context.
func (tc *HeaderTimechain) TipContext() HeaderContext {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.chain.TipContext()
}

// AddGenesis seeds the chain with its first header. It bypasses the normal
// parent-resolution path since genesis has no parent.
func (tc *HeaderTimechain) AddGenesis(ctx HeaderContext) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.chain.Empty() {
		return fmt.Errorf("chain: genesis already set")
	}
	_, err := tc.chain.PushOne(ctx.Header, ctx.TotalWork)
	return err
}

// Find looks up a known context (committed or in the tree) by hash.
func (tc *HeaderTimechain) Find(hash types.Hash) (HeaderContext, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.find(hash)
}

func (tc *HeaderTimechain) find(hash types.Hash) (HeaderContext, bool) {
	if !tc.chain.Empty() && hash == tc.chain.TipHash() {
		return tc.chain.TipContext(), true
	}
	for h := 0; h < tc.chain.Length(); h++ {
		if tc.chain.HashAt(h) == hash {
			return tc.contextAtChainHeight(h), true
		}
	}
	if node, ok := tc.tree[hash]; ok {
		return node.Context, true
	}
	return HeaderContext{}, false
}

// contextAtChainHeight reconstructs the HeaderContext at a committed chain
// height by walking backward from the tip, per spec: O(tip-height).
func (tc *HeaderTimechain) contextAtChainHeight(height int) HeaderContext {
	ctx := tc.chain.TipContext()
	for ctx.Height > int64(height) {
		ctx = ctx.Rewind(tc.chain.At(int(ctx.Height)-1), tc.chain.HashAt(int(ctx.Height)-1))
	}
	return ctx
}

// Add admits a candidate context (already validated by HeaderValidator
// against its parent) into the chain or tree, performing a reorg if the
// resulting branch now outweighs the committed chain, and pruning stale
// forks afterward. It returns the position the context landed at.
func (tc *HeaderTimechain) Add(ctx HeaderContext) (Position, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	parentHash := ctx.Header.PrevBlockHash
	parentHeight := ctx.Height - 1

	if parentHeight >= 0 && parentHeight < int64(tc.chain.Length()) && tc.chain.HashAt(int(parentHeight)) == parentHash {
		if parentHeight == int64(tc.chain.TipHeight()) {
			idx, err := tc.chain.PushOne(ctx.Header, ctx.TotalWork)
			if err != nil {
				return Position{}, err
			}
			tc.pruneReorgTree()
			return Position{InChain: true, ChainHeight: int64(idx)}, nil
		}
		// Parent is in the committed chain but not at the tip: this opens a
		// brand-new branch rooted at the candidate's own height.
		node := &TreeNode{Parent: nil, Hash: ctx.Hash, Context: ctx, RootHeight: ctx.Height}
		tc.tree[ctx.Hash] = node
		tc.updateMinRootHeight(node.RootHeight)
		if err := tc.maybeReorg(node); err != nil {
			return Position{}, err
		}
		if _, inTree := tc.tree[ctx.Hash]; !inTree {
			tc.pruneReorgTree()
			return Position{InChain: true, ChainHeight: ctx.Height}, nil
		}
		tc.pruneReorgTree()
		return Position{TreeHash: ctx.Hash}, nil
	}

	if parent, ok := tc.tree[parentHash]; ok {
		node := &TreeNode{Parent: parent, Hash: ctx.Hash, Context: ctx, RootHeight: parent.RootHeight}
		tc.tree[ctx.Hash] = node
		tc.updateMinRootHeight(node.RootHeight)
		if err := tc.maybeReorg(node); err != nil {
			return Position{}, err
		}
		if _, inTree := tc.tree[ctx.Hash]; !inTree {
			tc.pruneReorgTree()
			return Position{InChain: true, ChainHeight: ctx.Height}, nil
		}
		tc.pruneReorgTree()
		return Position{TreeHash: ctx.Hash}, nil
	}

	return Position{}, ErrParentNotFound
}

func (tc *HeaderTimechain) updateMinRootHeight(rootHeight int64) {
	if len(tc.tree) == 1 || rootHeight < tc.minRootHeight {
		tc.minRootHeight = rootHeight
	}
}

// maybeReorg performs a branch-to-chain swap if node's total work now
// exceeds the committed chain's.
func (tc *HeaderTimechain) maybeReorg(node *TreeNode) error {
	if !node.Context.TotalWork.Greater(tc.chain.TipTotalWork()) {
		return nil
	}
	return tc.reorgTo(node)
}

// reorgTo rewrites the committed chain to the branch ending at tip: the
// former chain suffix below the fork point is preserved in the tree as a
// candidate branch (so a later, even heavier fork can still reclaim it),
// and the winning branch is spliced into the chain in its place.
func (tc *HeaderTimechain) reorgTo(tip *TreeNode) error {
	var path []*TreeNode
	node := tip
	for node != nil {
		path = append(path, node)
		node = node.Parent
	}
	// path is tip..root; reverse to root..tip.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	root := path[0]
	forkHeight := root.RootHeight - 1

	if forkHeight >= 0 {
		if forkHeight >= int64(tc.chain.Length()) {
			panic("chain: reorg root height exceeds committed chain length")
		}
		if tc.chain.HashAt(int(forkHeight)) != root.Context.Header.PrevBlockHash {
			panic("chain: reorg root prev-hash does not match chain at fork height")
		}
	}

	// Rewind the current chain tip down to the fork point, re-inserting
	// each displaced header into the tree as a new branch rooted at the
	// fork point.
	var forkTotalWork = tc.chain.TipTotalWork()
	if !tc.chain.Empty() {
		ctx := tc.chain.TipContext()
		var displaced []HeaderContext
		for ctx.Height > forkHeight {
			displaced = append(displaced, ctx)
			if ctx.Height == 0 {
				break
			}
			ctx = ctx.Rewind(tc.chain.At(int(ctx.Height)-1), tc.chain.HashAt(int(ctx.Height)-1))
		}
		forkTotalWork = ctx.TotalWork

		for i, j := 0, len(displaced)-1; i < j; i, j = i+1, j-1 {
			displaced[i], displaced[j] = displaced[j], displaced[i]
		}
		var parent *TreeNode
		rootHeight := forkHeight + 1
		for _, c := range displaced {
			n := &TreeNode{Parent: parent, Hash: c.Hash, Context: c, RootHeight: rootHeight}
			tc.tree[c.Hash] = n
			parent = n
		}
	}

	if err := tc.chain.TruncateLength(int(forkHeight)+1, forkTotalWork); err != nil {
		return fmt.Errorf("reorg: %w", err)
	}

	for _, n := range path {
		if _, err := tc.chain.PushOne(n.Context.Header, n.Context.TotalWork); err != nil {
			return fmt.Errorf("reorg: splice branch onto chain: %w", err)
		}
		delete(tc.tree, n.Hash)
	}

	return nil
}

// pruneReorgTree drops tree nodes whose branch has fallen more than
// maxKeepDepth behind the chain tip.
func (tc *HeaderTimechain) pruneReorgTree() {
	if tc.maxKeepDepth <= 0 || len(tc.tree) == 0 {
		return
	}
	cutoff := int64(tc.chain.TipHeight()) - tc.maxKeepDepth
	if tc.minRootHeight >= cutoff {
		return
	}
	min := int64(-1)
	for hash, node := range tc.tree {
		if node.RootHeight < cutoff {
			delete(tc.tree, hash)
			continue
		}
		if min == -1 || node.RootHeight < min {
			min = node.RootHeight
		}
	}
	if min == -1 {
		min = cutoff
	}
	tc.minRootHeight = min
}

// FindPosition locates hash as a Position, the form ValidationViewAt needs,
// rather than the full HeaderContext Find returns.
func (tc *HeaderTimechain) FindPosition(hash types.Hash) (Position, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if !tc.chain.Empty() && hash == tc.chain.TipHash() {
		return Position{InChain: true, ChainHeight: int64(tc.chain.TipHeight())}, true
	}
	for h := 0; h < tc.chain.Length(); h++ {
		if tc.chain.HashAt(h) == hash {
			return Position{InChain: true, ChainHeight: int64(h)}, true
		}
	}
	if _, ok := tc.tree[hash]; ok {
		return Position{TreeHash: hash}, true
	}
	return Position{}, false
}

// ChainContextAt returns the committed chain's header context at height, for
// callers (BlockSync's next-block selection) that need to look a specific
// height up directly rather than by hash.
func (tc *HeaderTimechain) ChainContextAt(height int64) (HeaderContext, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if height < 0 || height > int64(tc.chain.TipHeight()) {
		return HeaderContext{}, false
	}
	return tc.contextAtChainHeight(int(height)), true
}

// ValidationViewAt returns an AncestryView whose tip is the context at pos,
// for validating a candidate header that extends it.
func (tc *HeaderTimechain) ValidationViewAt(pos Position) *ValidationView {
	return &ValidationView{tc: tc, pos: pos}
}

// ValidationView implements consensus.AncestryView and block.AncestryView
// over a HeaderTimechain, rooted at a fixed tip position.
type ValidationView struct {
	tc  *HeaderTimechain
	pos Position
}

// ancestorAt walks from the view's tip down to height, crossing from the
// tree into the committed chain when the tree's root is reached.
func (v *ValidationView) ancestorAt(height int64) (HeaderContext, bool) {
	v.tc.mu.RLock()
	defer v.tc.mu.RUnlock()

	if v.pos.InChain {
		if height < 0 || height > v.pos.ChainHeight {
			return HeaderContext{}, false
		}
		return v.tc.contextAtChainHeight(int(height)), true
	}

	node, ok := v.tc.tree[v.pos.TreeHash]
	if !ok {
		return HeaderContext{}, false
	}
	for node != nil && node.Context.Height > height {
		node = node.Parent
	}
	if node != nil && node.Context.Height == height {
		return node.Context, true
	}
	if height >= 0 && height <= int64(v.tc.chain.TipHeight()) {
		return v.tc.contextAtChainHeight(int(height)), true
	}
	return HeaderContext{}, false
}

// TimestampAt returns the ancestor timestamp at height.
func (v *ValidationView) TimestampAt(height int64) (uint32, bool) {
	ctx, ok := v.ancestorAt(height)
	if !ok {
		return 0, false
	}
	return ctx.Header.Timestamp, true
}

// LastNTimestamps returns up to count ancestor timestamps ending at height,
// most recent first.
func (v *ValidationView) LastNTimestamps(height int64, count int) []uint32 {
	var out []uint32
	for h := height; h > height-int64(count) && h >= 0; h-- {
		ctx, ok := v.ancestorAt(h)
		if !ok {
			break
		}
		out = append(out, ctx.Header.Timestamp)
	}
	return out
}

// Length returns the height just past this view's tip: the height a
// candidate extending it would occupy.
func (v *ValidationView) Length() int64 {
	if v.pos.InChain {
		return v.pos.ChainHeight + 1
	}
	v.tc.mu.RLock()
	defer v.tc.mu.RUnlock()
	if node, ok := v.tc.tree[v.pos.TreeHash]; ok {
		return node.Context.Height + 1
	}
	return 0
}
