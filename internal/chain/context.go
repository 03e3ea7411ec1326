// Package chain implements the header chain/tree state machine: a linear
// committed HeaderChain, a branching HeaderTree of putative forks, and their
// composition HeaderTimechain, which adds candidate headers, reorgs onto a
// heavier branch when one appears, and prunes stale forks.
package chain

import (
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/primitives"
	"github.com/tobysharp/timechain/pkg/types"
)

// HeaderContext is a header positioned on some chain: its own hash, the
// work it individually contributes, the cumulative work of the chain up to
// and including it, and its height.
type HeaderContext struct {
	Header    *block.Header
	Hash      types.Hash
	LocalWork primitives.Work
	TotalWork primitives.Work
	Height    int64
}

// GenesisContext builds the context for a chain's first header.
func GenesisContext(h *block.Header) HeaderContext {
	work := h.GetWork()
	return HeaderContext{Header: h, Hash: h.ComputeHash(), LocalWork: work, TotalWork: work, Height: 0}
}

// Extend returns the context for next, assumed to directly follow c.
func (c HeaderContext) Extend(next *block.Header) HeaderContext {
	work := next.GetWork()
	return HeaderContext{
		Header:    next,
		Hash:      next.ComputeHash(),
		LocalWork: work,
		TotalWork: c.TotalWork.Add(work),
		Height:    c.Height + 1,
	}
}

// Rewind returns the predecessor context: prev is c's parent header, and
// prevHash is prev's own hash (c.Header.PrevBlockHash, passed in to avoid
// recomputing it at every step of a long walk).
func (c HeaderContext) Rewind(prev *block.Header, prevHash types.Hash) HeaderContext {
	localWork := prev.GetWork()
	return HeaderContext{
		Header:    prev,
		Hash:      prevHash,
		LocalWork: localWork,
		TotalWork: subWork(c.TotalWork, c.LocalWork),
		Height:    c.Height - 1,
	}
}

// subWork computes a-b on BigUint256 work accumulators. Work has no exported
// subtraction (chains only ever add work going forward); Rewind is the one
// place that needs to walk backward, so it drops to the underlying Uint256.
func subWork(a, b primitives.Work) primitives.Work {
	return primitives.WorkFromUint256(a.Value().Sub(b.Value()))
}
