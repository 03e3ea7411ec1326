package chainsync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tobysharp/timechain/internal/spend"
	"github.com/tobysharp/timechain/internal/utxo"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/tx"
	"github.com/tobysharp/timechain/pkg/types"
)

// ValidationResult is delivered once per submitted block.
type ValidationResult struct {
	Height int64
	Block  *block.Block
	Err    error
}

// CompleteCallback receives a block's final validation outcome.
type CompleteCallback func(ValidationResult)

// ValidationPipeline owns a spend.Pipeline and a fixed-size worker pool
// that, for each submitted block, waits for its SpendJoiner to resolve
// every funding output, runs the block's structural checks
// (ValidateStructural; the contextual rules of ValidateContextual are not
// run here), then checks spending against the joiner's resolved outputs. The worker pool is an
// errgroup.Group rather than a bare WaitGroup: its membership is fixed at
// construction and Stop needs every worker to observe cancellation and
// exit together, which is exactly what errgroup.WithContext gives for free.
type ValidationPipeline struct {
	spend *spend.Pipeline
	jobs  chan validationJob

	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	onComplete CompleteCallback
}

type validationJob struct {
	joiner *spend.Joiner
	height int64
	blk    *block.Block
}

// NewValidationPipeline constructs a pipeline over db with numSpendWorkers
// driving the underlying spend.Pipeline and numValidationWorkers consuming
// resolved joiners, starting from startHeight (the height of the first
// block this pipeline will ever see). onComplete is called once per
// Submit'd block, possibly out of submission order.
func NewValidationPipeline(db *utxo.Database, numSpendWorkers, numValidationWorkers int, startHeight int64, onComplete CompleteCallback) *ValidationPipeline {
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)

	vp := &ValidationPipeline{
		spend:      spend.NewPipeline(db, numSpendWorkers, startHeight),
		jobs:       make(chan validationJob, numValidationWorkers),
		eg:         eg,
		ctx:        egCtx,
		cancel:     cancel,
		onComplete: onComplete,
	}
	for i := 0; i < numValidationWorkers; i++ {
		vp.eg.Go(vp.worker)
	}
	return vp
}

// Submit creates a SpendJoiner for blk via the underlying spend.Pipeline and
// schedules its validation once funding outputs resolve.
func (vp *ValidationPipeline) Submit(blk *block.Block, height int64) error {
	if vp.ctx.Err() != nil {
		return fmt.Errorf("chainsync: validation pipeline: stopped")
	}
	joiner, err := vp.spend.Add(blk, height)
	if err != nil {
		return fmt.Errorf("chainsync: validation pipeline: %w", err)
	}
	select {
	case vp.jobs <- validationJob{joiner: joiner, height: height, blk: blk}:
		return nil
	case <-vp.ctx.Done():
		return fmt.Errorf("chainsync: validation pipeline: stopped")
	}
}

// Stop cancels all in-flight joiners, stops accepting new work, and waits
// for every validation worker to exit.
func (vp *ValidationPipeline) Stop() {
	vp.spend.Stop()
	vp.cancel()
	_ = vp.eg.Wait()
}

func (vp *ValidationPipeline) worker() error {
	for {
		select {
		case job, ok := <-vp.jobs:
			if !ok {
				return nil
			}
			vp.process(job)
		case <-vp.ctx.Done():
			return nil
		}
	}
}

func (vp *ValidationPipeline) process(job validationJob) {
	if err := spend.WaitForFetch(vp.ctx, job.joiner); err != nil {
		vp.deliver(ValidationResult{Height: job.height, Block: job.blk, Err: err})
		return
	}

	if err := job.blk.ValidateStructural(); err != nil {
		vp.deliver(ValidationResult{Height: job.height, Block: job.blk, Err: err})
		return
	}

	resolver := newJoinerResolver()
	job.joiner.Join(resolver.record)

	if err := job.blk.ValidateSpending(resolver, job.height); err != nil {
		vp.deliver(ValidationResult{Height: job.height, Block: job.blk, Err: err})
		return
	}

	vp.deliver(ValidationResult{Height: job.height, Block: job.blk})
}

func (vp *ValidationPipeline) deliver(r ValidationResult) {
	if vp.onComplete != nil {
		vp.onComplete(r)
	}
}

// joinerResolver adapts a Joiner's Join callback into a block.SpendingResolver:
// Join hands back one SpendRecord per resolved input, keyed here by the
// outpoint it actually spent so ValidateSpending can look it up the way any
// other SpendingResolver would.
type joinerResolver struct {
	byOutpoint map[types.OutPoint]tx.FundingOutput
}

func newJoinerResolver() *joinerResolver {
	return &joinerResolver{byOutpoint: make(map[types.OutPoint]tx.FundingOutput)}
}

func (r *joinerResolver) record(rec spend.SpendRecord) {
	outpoint := rec.Tx.Inputs[rec.SpendInputIndex].PrevOut
	r.byOutpoint[outpoint] = tx.FundingOutput{
		Value:         rec.Amount,
		FundingHeight: rec.FundingHeight,
		FromCoinBase:  rec.FromCoinBase,
	}
}

func (r *joinerResolver) Resolve(outpoint types.OutPoint) (tx.FundingOutput, bool) {
	out, ok := r.byOutpoint[outpoint]
	return out, ok
}
