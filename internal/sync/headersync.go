package chainsync

import (
	"fmt"
	"sync"

	"github.com/tobysharp/timechain/internal/chain"
	"github.com/tobysharp/timechain/internal/consensus"
	"github.com/tobysharp/timechain/internal/notify"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/types"
)

// MaxHeadersPerMessage is the wire maximum for a single headers batch; a
// batch this size implies more headers are available and another request
// should follow immediately.
const MaxHeadersPerMessage = 2000

// HeaderSyncHandler is the outbound half of a sync: it issues requests and
// reports terminal outcomes. Peer is an opaque, comparable identity (e.g. a
// connection id) so a faulted peer's queued work can be found and dropped.
type HeaderSyncHandler[Peer comparable] interface {
	RequestHeaders(peer Peer, locatorHash types.Hash) error
	ReportHeaderError(peer Peer, err error)
	ReportHeaderComplete(peer Peer)
}

// HeaderBatch pairs a batch of headers with the peer that sent them.
type HeaderBatch[Peer comparable] struct {
	Peer    Peer
	Headers []*block.Header
}

// HeaderSync drives header-chain synchronization against one or more peers,
// admitting validated headers into a HeaderTimechain. At most one
// getheaders request is ever outstanding; OnHeaders enqueues the response
// for background processing so the caller (typically a network read loop)
// never blocks on validation.
type HeaderSync[Peer comparable] struct {
	tc        *chain.HeaderTimechain
	validator *consensus.HeaderValidator
	handler   HeaderSyncHandler[Peer]
	sink      *notify.Sink

	queue *Queue[HeaderBatch[Peer]]

	mu          sync.Mutex
	sendBlocked bool
	nextRequest types.Hash

	wg sync.WaitGroup
}

// NewHeaderSync constructs a HeaderSync over tc, validating new headers with
// validator and reporting through handler. It starts its background worker
// immediately; call Stop to shut it down.
func NewHeaderSync[Peer comparable](tc *chain.HeaderTimechain, validator *consensus.HeaderValidator, handler HeaderSyncHandler[Peer]) *HeaderSync[Peer] {
	hs := &HeaderSync[Peer]{
		tc:        tc,
		validator: validator,
		handler:   handler,
		queue:     NewQueue[HeaderBatch[Peer]](0),
	}
	hs.wg.Add(1)
	go hs.worker()
	return hs
}

// SetSink attaches a notification sink so admitted headers are reported as
// sync/headers events. Safe to call once before StartSync; sink may be nil.
func (hs *HeaderSync[Peer]) SetSink(sink *notify.Sink) {
	hs.sink = sink
}

// StartSync requests headers from peer starting at the current heaviest
// tip. If the handler can't send the request, it reports completion
// immediately: there is nothing more this sync can do with this peer.
func (hs *HeaderSync[Peer]) StartSync(peer Peer) error {
	tip := hs.tc.TipContext()

	hs.mu.Lock()
	hs.nextRequest = tip.Hash
	hs.sendBlocked = true
	hs.mu.Unlock()

	if err := hs.handler.RequestHeaders(peer, tip.Hash); err != nil {
		hs.mu.Lock()
		hs.sendBlocked = false
		hs.mu.Unlock()
		hs.handler.ReportHeaderComplete(peer)
		return err
	}
	return nil
}

// OnHeaders admits a batch of headers received in response to the
// outstanding request. It is an error to call this without a request
// pending, which would indicate a peer sending unsolicited data or a
// request-tracking bug upstream.
func (hs *HeaderSync[Peer]) OnHeaders(peer Peer, headers []*block.Header) error {
	hs.mu.Lock()
	if !hs.sendBlocked {
		hs.mu.Unlock()
		return fmt.Errorf("chainsync: headers received with no outstanding request")
	}

	full := len(headers) == MaxHeadersPerMessage
	if full && len(headers) > 0 {
		hs.nextRequest = headers[len(headers)-1].ComputeHash()
	} else {
		hs.sendBlocked = false
	}
	hs.mu.Unlock()

	hs.queue.Push(HeaderBatch[Peer]{Peer: peer, Headers: headers})

	if full {
		return hs.handler.RequestHeaders(peer, hs.nextRequest)
	}
	return nil
}

// Stop drains the queue and waits for the background worker to exit. Safe
// to call once.
func (hs *HeaderSync[Peer]) Stop() {
	hs.queue.Stop()
	hs.wg.Wait()
}

func (hs *HeaderSync[Peer]) worker() {
	defer hs.wg.Done()
	for {
		batch, ok := hs.queue.WaitPop()
		if !ok {
			return
		}
		hs.processBatch(batch)
	}
}

// processBatch validates every header in batch against a ValidationView
// rooted at its parent, admitting each one to the timechain in turn and
// advancing the view's tip as it goes. A validation failure drops the
// whole batch and every other batch still queued from the same peer.
func (hs *HeaderSync[Peer]) processBatch(batch HeaderBatch[Peer]) {
	if len(batch.Headers) == 0 {
		hs.handler.ReportHeaderComplete(batch.Peer)
		return
	}

	first := batch.Headers[0]
	parentCtx, ok := hs.tc.Find(first.PrevBlockHash)
	if !ok {
		hs.handler.ReportHeaderError(batch.Peer, chain.ErrParentNotFound)
		hs.dropPeer(batch.Peer)
		return
	}
	pos, ok := hs.tc.FindPosition(first.PrevBlockHash)
	if !ok {
		hs.handler.ReportHeaderError(batch.Peer, chain.ErrParentNotFound)
		hs.dropPeer(batch.Peer)
		return
	}
	view := hs.tc.ValidationViewAt(pos)

	for _, h := range batch.Headers {
		parentInfo := consensus.ParentInfo{
			Hash:      parentCtx.Hash,
			Height:    parentCtx.Height,
			Bits:      parentCtx.Header.Bits,
			Timestamp: parentCtx.Header.Timestamp,
		}
		height := parentCtx.Height + 1

		if err := hs.validator.Validate(h, parentInfo, view, height); err != nil {
			hs.handler.ReportHeaderError(batch.Peer, err)
			hs.dropPeer(batch.Peer)
			return
		}

		ctx := parentCtx.Extend(h)
		newPos, err := hs.tc.Add(ctx)
		if err != nil {
			hs.handler.ReportHeaderError(batch.Peer, err)
			hs.dropPeer(batch.Peer)
			return
		}

		view = hs.tc.ValidationViewAt(newPos)
		parentCtx = ctx
	}

	if hs.sink != nil {
		hs.sink.HeadersValidated(int64(len(batch.Headers)))
	}

	if len(batch.Headers) < MaxHeadersPerMessage {
		hs.handler.ReportHeaderComplete(batch.Peer)
	}
}

// dropPeer discards every batch still queued from peer: once one of its
// batches fails validation, the rest can't be trusted either.
func (hs *HeaderSync[Peer]) dropPeer(peer Peer) {
	hs.queue.DropMatching(func(b HeaderBatch[Peer]) bool { return b.Peer == peer })
}
