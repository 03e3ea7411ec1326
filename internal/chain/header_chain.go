package chain

import (
	"errors"
	"fmt"

	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/primitives"
	"github.com/tobysharp/timechain/pkg/types"
)

// ErrChainWorkRegression is raised when a caller tries to push or truncate
// the chain to a total work lower than its current tip — an internal
// invariant violation, never a consequence of untrusted input.
var ErrChainWorkRegression = errors.New("chain: total work must not decrease")

// ErrBrokenLink is raised by the single-header Push overload when the
// header does not extend the current tip.
var ErrBrokenLink = errors.New("chain: header does not extend chain tip")

// HeaderChain is the linear, committed sequence of headers that make up the
// currently-heaviest branch: genesis at index 0, one cumulative total work
// value cached at the tip. Headers only arrive here once a branch has beaten
// the previous tip (see HeaderTimechain); HeaderChain itself does no
// consensus validation.
type HeaderChain struct {
	headers   []*block.Header
	totalWork primitives.Work
	tipHash   *types.Hash // lazily computed, invalidated by any mutation
}

// NewHeaderChain returns an empty chain.
func NewHeaderChain() *HeaderChain {
	return &HeaderChain{}
}

// Empty reports whether the chain has no headers yet.
func (c *HeaderChain) Empty() bool { return len(c.headers) == 0 }

// Length returns the number of headers in the chain.
func (c *HeaderChain) Length() int { return len(c.headers) }

// TipHeight returns the height of the last header, or -1 if empty.
func (c *HeaderChain) TipHeight() int { return len(c.headers) - 1 }

// At returns the header at the given height.
func (c *HeaderChain) At(height int) *block.Header { return c.headers[height] }

// Tip returns the chain's last header, or nil if empty.
func (c *HeaderChain) Tip() *block.Header {
	if c.Empty() {
		return nil
	}
	return c.headers[len(c.headers)-1]
}

// HashAt returns the hash of the header at height: the next header's
// prev_block_hash field when one exists, else the lazily computed tip hash.
func (c *HeaderChain) HashAt(height int) types.Hash {
	if height == c.TipHeight() {
		return c.TipHash()
	}
	return c.headers[height+1].PrevBlockHash
}

// TipHash returns (and caches) the tip header's own hash.
func (c *HeaderChain) TipHash() types.Hash {
	if c.tipHash == nil {
		h := c.Tip().ComputeHash()
		c.tipHash = &h
	}
	return *c.tipHash
}

// TipTotalWork returns the cumulative work of the chain as of the tip.
func (c *HeaderChain) TipTotalWork() primitives.Work { return c.totalWork }

// TipContext reconstructs the HeaderContext at the chain's tip.
func (c *HeaderChain) TipContext() HeaderContext {
	tip := c.Tip()
	return HeaderContext{
		Header:    tip,
		Hash:      c.TipHash(),
		LocalWork: tip.GetWork(),
		TotalWork: c.totalWork,
		Height:    int64(c.TipHeight()),
	}
}

// Push appends headers in bulk, setting the new tip's cumulative work
// directly (the caller has already computed it, typically via repeated
// HeaderContext.Extend). totalTipWork must be >= the chain's current total
// work.
func (c *HeaderChain) Push(headers []*block.Header, totalTipWork primitives.Work) (int, error) {
	if totalTipWork.Cmp(c.totalWork) < 0 {
		return 0, ErrChainWorkRegression
	}
	c.headers = append(c.headers, headers...)
	c.totalWork = totalTipWork
	if len(headers) > 0 {
		c.tipHash = nil
	}
	return c.TipHeight(), nil
}

// PushOne appends a single header that must extend the current tip (or be
// the first header in an empty chain).
func (c *HeaderChain) PushOne(header *block.Header, totalTipWork primitives.Work) (int, error) {
	if totalTipWork.Cmp(c.totalWork) < 0 {
		return 0, ErrChainWorkRegression
	}
	if !c.Empty() && header.PrevBlockHash != c.TipHash() {
		return 0, ErrBrokenLink
	}
	c.headers = append(c.headers, header)
	c.totalWork = totalTipWork
	c.tipHash = nil
	return c.TipHeight(), nil
}

// TruncateLength shrinks the chain to length headers and resets the
// cumulative work to totalTipWork (the work of the new, shorter tip).
func (c *HeaderChain) TruncateLength(length int, totalTipWork primitives.Work) error {
	if length < 0 || length > len(c.headers) {
		return fmt.Errorf("chain: truncate length %d out of range [0,%d]", length, len(c.headers))
	}
	c.headers = c.headers[:length]
	c.totalWork = totalTipWork
	c.tipHash = nil
	return nil
}
