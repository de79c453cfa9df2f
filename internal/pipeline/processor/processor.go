// Package processor walks a block range in batches and hands each block to a
// chain-specific BlockHandler.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/selendra/selendra-explorer-sub000/internal/alert"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline"
	"github.com/selendra/selendra-explorer-sub000/internal/store"
	"github.com/selendra/selendra-explorer-sub000/internal/tracing"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=mocks/mock_block_handler.go -package=mocks . BlockHandler

const (
	// DefaultRetryBackoff is multiplied by the attempt number between
	// attempts of a failing block.
	DefaultRetryBackoff = 500 * time.Millisecond
	// DefaultBatchRetryDelay is the pause before a batch whose dispatch
	// failed is run again.
	DefaultBatchRetryDelay = time.Second
	DefaultBlockTime       = 6 * time.Second
)

// errDispatch marks failures of the batch as a whole, as opposed to failures
// of individual blocks.
var errDispatch = errors.New("batch dispatch failed")

// BlockHandler is the chain-specific unit of work.
type BlockHandler interface {
	Chain() model.Chain
	// HeadBlock returns the newest block the processor may index.
	HeadBlock(ctx context.Context) (uint64, error)
	ProcessBlock(ctx context.Context, number uint64) error
	// Concurrent reports whether ProcessBlock may run for several blocks at
	// once.
	Concurrent() bool
}

// Result summarises one bounded run.
type Result struct {
	RunID     string
	Chain     model.Chain
	Start     uint64
	End       uint64
	Batches   int
	Processed int
	Failed    []uint64
	Duration  time.Duration
}

// Progress is the state reported after each batch.
type Progress struct {
	Done    uint64
	Total   uint64
	Percent float64
	Head    uint64
}

type Processor struct {
	handler         BlockHandler
	chain           model.Chain
	network         model.Network
	concurrency     int
	blockTime       time.Duration
	retryBackoff    time.Duration
	batchRetryDelay time.Duration
	cursors         store.CursorRepository
	health          *pipeline.PipelineHealth
	alerter         alert.Alerter
	logger          *slog.Logger
	tracer          trace.Tracer
	sleepFn         func(ctx context.Context, d time.Duration) error
	nowFn           func() time.Time

	mu            sync.Mutex
	latestIndexed *uint64
	cursorLoaded  bool
	progress      Progress
}

type Option func(*Processor)

func WithNetwork(network model.Network) Option {
	return func(p *Processor) { p.network = network }
}

// WithConcurrency caps the blocks processed at once within a batch. Zero
// means one goroutine per block of the batch.
func WithConcurrency(n int) Option {
	return func(p *Processor) { p.concurrency = n }
}

// WithBlockTime sets the pause between continuous-sync passes.
func WithBlockTime(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.blockTime = d
		}
	}
}

func WithCursorRepository(repo store.CursorRepository) Option {
	return func(p *Processor) { p.cursors = repo }
}

func WithHealth(h *pipeline.PipelineHealth) Option {
	return func(p *Processor) { p.health = h }
}

func WithAlerter(a alert.Alerter) Option {
	return func(p *Processor) { p.alerter = a }
}

func New(handler BlockHandler, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		handler:         handler,
		chain:           handler.Chain(),
		network:         model.NetworkMainnet,
		blockTime:       DefaultBlockTime,
		retryBackoff:    DefaultRetryBackoff,
		batchRetryDelay: DefaultBatchRetryDelay,
		alerter:         &alert.NoopAlerter{},
		tracer:          tracing.Tracer("processor"),
		nowFn:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.health == nil {
		p.health = pipeline.NewPipelineHealth(p.chain, p.network)
	}
	p.logger = logger.With("component", "processor", "chain", p.chain.String())
	return p
}

func (p *Processor) Health() *pipeline.PipelineHealth {
	return p.health
}

// LatestIndexedBlock returns the highest block such that it and every block
// before it in the indexed range completed successfully.
func (p *Processor) LatestIndexedBlock() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latestIndexed == nil {
		return 0, false
	}
	return *p.latestIndexed, true
}

func (p *Processor) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// StartProcessing indexes [cfg.StartBlock, cfg.EndBlock]. A nil EndBlock is
// replaced by the handler's head, fetched once. Permanently failed blocks are
// logged and listed in the result; the run only returns an error for an
// invalid config, a failed head lookup or cancellation.
func (p *Processor) StartProcessing(ctx context.Context, cfg model.ProcessingConfig) (*Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid processing config: %w", err)
	}
	if err := p.loadCursor(ctx); err != nil {
		return nil, err
	}

	var end uint64
	if cfg.EndBlock != nil {
		end = *cfg.EndBlock
	} else {
		head, err := p.fetchHead(ctx)
		if err != nil {
			return nil, err
		}
		end = head
	}

	if end < cfg.StartBlock {
		p.logger.Info("nothing to process", "start_block", cfg.StartBlock, "end_block", end)
		return &Result{Chain: p.chain, Start: cfg.StartBlock, End: end}, nil
	}
	return p.run(ctx, cfg, cfg.StartBlock, end)
}

// StartContinuousSync follows the chain head until ctx is cancelled. Each
// pass first re-attempts blocks that failed in earlier passes, then indexes
// from the block after the previous pass to the current head, then sleeps
// one block time. The first pass starts after the persisted cursor, or at
// cfg.StartBlock when there is none.
func (p *Processor) StartContinuousSync(ctx context.Context, cfg model.ProcessingConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid processing config: %w", err)
	}
	if err := p.loadCursor(ctx); err != nil {
		return err
	}

	next := cfg.StartBlock
	if latest, ok := p.LatestIndexedBlock(); ok && latest+1 > next {
		next = latest + 1
	}
	base := next
	p.logger.Info("continuous sync started", "from_block", next, "block_time", p.blockTime)

	var failed []uint64
	for {
		if len(failed) > 0 || p.cursorLags(base, next) {
			var err error
			if failed, err = p.retryFailed(ctx, cfg.MaxRetries, failed, base, next); err != nil {
				return err
			}
		}

		head, err := p.fetchHead(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("head lookup failed", "error", err)
		case head >= next:
			res, err := p.run(ctx, cfg, next, head)
			if err != nil {
				return err
			}
			failed = append(failed, res.Failed...)
			next = head + 1
		}

		if err := p.sleep(ctx, p.blockTime); err != nil {
			return err
		}
	}
}

func (p *Processor) fetchHead(ctx context.Context) (uint64, error) {
	head, err := p.handler.HeadBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch chain head: %w", err)
	}
	p.setHead(head)
	return head, nil
}

// loadCursor reads the persisted cursor once per processor.
func (p *Processor) loadCursor(ctx context.Context) error {
	p.mu.Lock()
	loaded := p.cursorLoaded
	p.mu.Unlock()
	if loaded || p.cursors == nil {
		return nil
	}

	cursor, err := p.cursors.Get(ctx, p.chain, p.network)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursorLoaded = true
	if cursor != nil {
		v := cursor.LatestIndexedBlock
		p.latestIndexed = &v
		p.logger.Info("resuming from persisted cursor", "latest_indexed_block", v)
	}
	return nil
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if p.sleepFn != nil {
		return p.sleepFn(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
