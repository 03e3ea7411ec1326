package spend

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/tobysharp/timechain/internal/utxo"
	"github.com/tobysharp/timechain/pkg/block"
)

// Pipeline runs a pool of workers that drive Joiners from StateParsed
// through StateFetched, honoring the requirement that Append only ever
// runs in height order. Callers add blocks as they become ready to resolve
// and retrieve the Joiner back to wait on its Fetch stage (or drive Join
// themselves once a validation result is ready).
type Pipeline struct {
	db *utxo.Database

	mu         sync.Mutex
	cond       *sync.Cond
	ready      jobHeap
	blocked    []*Joiner
	active     map[*Joiner]struct{}
	nextAppend int64
	abort      bool

	wg sync.WaitGroup
}

// NewPipeline starts numWorkers goroutines draining the ready queue.
// startHeight is the height of the first block that will ever be Added;
// Appends are serialized starting there, so blocks may be Added out of
// arrival order (as they come in over the wire) and still land in the
// database in height order.
func NewPipeline(db *utxo.Database, numWorkers int, startHeight int64) *Pipeline {
	p := &Pipeline{
		db:         db,
		active:     make(map[*Joiner]struct{}),
		nextAppend: startHeight,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return p
}

// Add creates a Joiner for block at height, registers it with the pipeline
// and schedules it for background processing. A joiner whose height isn't
// yet eligible to Append (an earlier height hasn't appended) is parked on
// the blocked list straight away rather than entering the ready queue,
// since two workers popping the two lowest ready heights concurrently
// would otherwise be free to Append out of order.
func (p *Pipeline) Add(blk *block.Block, height int64) (*Joiner, error) {
	p.mu.Lock()
	if p.abort {
		p.mu.Unlock()
		return nil, fmt.Errorf("spend: pipeline: stopped")
	}
	nextAppend := p.nextAppend
	p.mu.Unlock()

	joiner := NewJoiner(p.db, blk, height)

	p.mu.Lock()
	p.active[joiner] = struct{}{}
	if joiner.readyToAdvance(nextAppend) {
		heap.Push(&p.ready, joiner)
	} else {
		p.blocked = append(p.blocked, joiner)
	}
	p.mu.Unlock()
	p.cond.Signal()
	return joiner, nil
}

// Stop cancels every active joiner and waits for all workers to exit. It is
// safe to call more than once.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.abort = true
	for j := range p.active {
		j.Cancel()
	}
	p.active = make(map[*Joiner]struct{})
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pipeline) workerLoop() {
	defer p.wg.Done()
	for {
		job := p.popReady()
		if job == nil {
			return
		}

		wasAppended := job.State() == StateParsed
		if err := job.advance(); err != nil {
			// Joiner recorded its own error state; nothing further to do here.
			_ = err
		}
		state := job.State()

		if wasAppended && state == StateAppended {
			p.onAppended(job)
		}

		if state == StateError || job.joinReady() {
			p.forget(job)
			continue
		}

		p.requeueOrBlock(job)
	}
}

// onAppended advances the shared height cursor and promotes any blocked
// job that becomes eligible as a result.
func (p *Pipeline) onAppended(job *Joiner) {
	p.mu.Lock()
	if job.Height() == p.nextAppend {
		p.nextAppend++
	}
	p.mu.Unlock()
	p.wakeBlocked()
}

func (p *Pipeline) wakeBlocked() {
	p.mu.Lock()
	kept := p.blocked[:0]
	var promoted []*Joiner
	for _, j := range p.blocked {
		if j.readyToAdvance(p.nextAppend) {
			promoted = append(promoted, j)
		} else {
			kept = append(kept, j)
		}
	}
	p.blocked = kept
	for _, j := range promoted {
		heap.Push(&p.ready, j)
	}
	p.mu.Unlock()
	if len(promoted) > 0 {
		p.cond.Broadcast()
	}
}

func (p *Pipeline) requeueOrBlock(job *Joiner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job.readyToAdvance(p.nextAppend) {
		heap.Push(&p.ready, job)
		p.cond.Signal()
	} else {
		p.blocked = append(p.blocked, job)
	}
}

func (p *Pipeline) forget(job *Joiner) {
	p.mu.Lock()
	delete(p.active, job)
	p.mu.Unlock()
}

func (p *Pipeline) popReady() *Joiner {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.abort && p.ready.Len() == 0 {
		p.cond.Wait()
	}
	if p.abort {
		return nil
	}
	return heap.Pop(&p.ready).(*Joiner)
}

// jobHeap is a min-heap by height: the oldest pending block is the highest
// priority, matching the order the database must see Appends in.
type jobHeap []*Joiner

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].Height() < h[j].Height() }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)         { *h = append(*h, x.(*Joiner)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// WaitForFetch blocks until job reaches StateFetched or StateError, or ctx
// is done first.
func WaitForFetch(ctx context.Context, job *Joiner) error {
	done := make(chan error, 1)
	go func() { done <- job.WaitForFetch() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
