package chainsync

import (
	"fmt"
	"sync"

	"github.com/tobysharp/timechain/internal/chain"
	"github.com/tobysharp/timechain/internal/notify"
	"github.com/tobysharp/timechain/internal/validationstatus"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/types"
)

// DefaultMaxQueueBytes bounds BlockSync's pending-block queue.
const DefaultMaxQueueBytes = 16 << 20

// BlockKey identifies the block currently requested.
type BlockKey struct {
	Height int64
	Hash   types.Hash
}

// BlockSyncHandler is the outbound half of block synchronization.
type BlockSyncHandler[Peer comparable] interface {
	RequestBlock(peer Peer, key BlockKey) error
	ReportBlockError(peer Peer, err error)
}

// BlockItem pairs a received block with the peer it came from and the
// height it was requested at.
type BlockItem[Peer comparable] struct {
	Peer   Peer
	Height int64
	Block  *block.Block
}

// BlockSync drives block-body synchronization: at most one getdata is
// outstanding at a time, selecting the next block either by extending the
// previous request or by consulting a validationstatus.Sidecar for the
// first gap. Received blocks are validated structurally and contextually
// (not for spending — that is ValidationPipeline's job) by a background
// worker, so OnBlock itself never blocks.
type BlockSync[Peer comparable] struct {
	tc          *chain.HeaderTimechain
	sidecar     validationstatus.Sidecar
	handler     BlockSyncHandler[Peer]
	activations block.ActivationHeights
	sink        *notify.Sink

	queue *Queue[BlockItem[Peer]]

	mu            sync.Mutex
	requestActive bool
	request       BlockKey
	requestPeer   Peer

	// OnValidated, if set, is called by the worker after a block passes
	// structural and contextual validation, so a caller can feed it onward
	// to a ValidationPipeline for spending validation.
	OnValidated func(height int64, blk *block.Block)

	wg sync.WaitGroup
}

// NewBlockSync constructs a BlockSync over tc, recording outcomes in
// sidecar and issuing requests through handler. maxQueueBytes <= 0 uses
// DefaultMaxQueueBytes.
func NewBlockSync[Peer comparable](tc *chain.HeaderTimechain, sidecar validationstatus.Sidecar, activations block.ActivationHeights, handler BlockSyncHandler[Peer], maxQueueBytes int) *BlockSync[Peer] {
	if maxQueueBytes <= 0 {
		maxQueueBytes = DefaultMaxQueueBytes
	}
	bs := &BlockSync[Peer]{
		tc:          tc,
		sidecar:     sidecar,
		handler:     handler,
		activations: activations,
		request:     BlockKey{Height: -1},
		queue: NewByteBoundedQueue[BlockItem[Peer]](maxQueueBytes, func(item BlockItem[Peer]) int {
			return item.Block.SerializedSize()
		}),
	}
	bs.wg.Add(1)
	go bs.worker()
	return bs
}

// SetSink attaches a notification sink so validated blocks are reported as
// sync/blocks events. Safe to call once before the first block arrives;
// sink may be nil.
func (bs *BlockSync[Peer]) SetSink(sink *notify.Sink) {
	bs.sink = sink
}

// RequestNext computes the next block to request and issues it, unless one
// is already outstanding. It reports whether a request was made.
func (bs *BlockSync[Peer]) RequestNext(peer Peer) (bool, error) {
	bs.mu.Lock()
	if bs.requestActive {
		bs.mu.Unlock()
		return false, nil
	}
	key, ok := bs.nextBlockKey()
	if !ok {
		bs.mu.Unlock()
		return false, nil
	}
	bs.requestActive = true
	bs.request = key
	bs.requestPeer = peer
	bs.mu.Unlock()

	if err := bs.handler.RequestBlock(peer, key); err != nil {
		bs.mu.Lock()
		bs.requestActive = false
		bs.mu.Unlock()
		return false, err
	}
	return true, nil
}

// nextBlockKey implements the selection rule: continue past the
// previously-requested block if it's still where expected, otherwise ask
// the sidecar for the first gap. Caller must hold bs.mu.
func (bs *BlockSync[Peer]) nextBlockKey() (BlockKey, bool) {
	if bs.request.Height >= 0 {
		if ctx, ok := bs.tc.ChainContextAt(bs.request.Height); ok && ctx.Hash == bs.request.Hash {
			next := bs.request.Height + 1
			if ctx2, ok := bs.tc.ChainContextAt(next); ok {
				return BlockKey{Height: next, Hash: ctx2.Hash}, true
			}
			return BlockKey{}, false
		}
	}

	tip := bs.tc.Height()
	if tip < 0 {
		return BlockKey{}, false
	}
	h, ok := bs.sidecar.FirstUnvalidated(0, tip+1)
	if !ok {
		return BlockKey{}, false
	}
	ctx, ok := bs.tc.ChainContextAt(h)
	if !ok {
		return BlockKey{}, false
	}
	return BlockKey{Height: h, Hash: ctx.Hash}, true
}

// OnBlock admits a block received in response to the outstanding request.
func (bs *BlockSync[Peer]) OnBlock(peer Peer, blk *block.Block) error {
	bs.mu.Lock()
	if !bs.requestActive || bs.request.Height < 0 {
		bs.mu.Unlock()
		return fmt.Errorf("chainsync: block received with no outstanding request")
	}
	hash := blk.Hash()
	if hash != bs.request.Hash {
		bs.mu.Unlock()
		err := fmt.Errorf("chainsync: block hash does not match request")
		bs.handler.ReportBlockError(peer, err)
		return err
	}
	height := bs.request.Height
	bs.requestActive = false
	bs.mu.Unlock()

	bs.queue.Push(BlockItem[Peer]{Peer: peer, Height: height, Block: blk})

	_, err := bs.RequestNext(peer)
	return err
}

// Stop drains the queue and waits for the background worker to exit.
func (bs *BlockSync[Peer]) Stop() {
	bs.queue.Stop()
	bs.wg.Wait()
}

func (bs *BlockSync[Peer]) worker() {
	defer bs.wg.Done()
	for {
		item, ok := bs.queue.WaitPop()
		if !ok {
			return
		}
		bs.processItem(item)
	}
}

func (bs *BlockSync[Peer]) processItem(item BlockItem[Peer]) {
	parentCtx, ok := bs.tc.ChainContextAt(item.Height - 1)
	if !ok && item.Height != 0 {
		bs.handler.ReportBlockError(item.Peer, fmt.Errorf("chainsync: logic error: parent of requested height %d not found on stable chain", item.Height))
		bs.dropPeer(item.Peer)
		return
	}

	if err := item.Block.ValidateStructural(); err != nil {
		bs.handler.ReportBlockError(item.Peer, err)
		bs.dropPeer(item.Peer)
		return
	}

	var view *chain.ValidationView
	if item.Height == 0 {
		view = bs.tc.ValidationViewAt(chain.Position{InChain: true, ChainHeight: -1})
	} else {
		pos, ok := bs.tc.FindPosition(parentCtx.Hash)
		if !ok {
			bs.handler.ReportBlockError(item.Peer, fmt.Errorf("chainsync: logic error: parent position for height %d not found", item.Height))
			bs.dropPeer(item.Peer)
			return
		}
		view = bs.tc.ValidationViewAt(pos)
	}

	params := block.BuildContextualParams(view, item.Height, item.Block.Header.Timestamp, bs.activations)
	if err := item.Block.ValidateContextual(params); err != nil {
		bs.handler.ReportBlockError(item.Peer, err)
		bs.dropPeer(item.Peer)
		return
	}

	bs.sidecar.Set(item.Height, validationstatus.Valid)
	if bs.sink != nil {
		bs.sink.BlocksValidated(1)
	}
	if bs.OnValidated != nil {
		bs.OnValidated(item.Height, item.Block)
	}
}

func (bs *BlockSync[Peer]) dropPeer(peer Peer) {
	bs.queue.DropMatching(func(item BlockItem[Peer]) bool { return item.Peer == peer })
}
