package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/selendra/selendra-explorer-sub000/internal/alert"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// run processes [start, end] batch by batch. It returns an error only when
// ctx is cancelled.
func (p *Processor) run(ctx context.Context, cfg model.ProcessingConfig, start, end uint64) (*Result, error) {
	res := &Result{
		RunID: uuid.NewString(),
		Chain: p.chain,
		Start: start,
		End:   end,
	}
	log := p.logger.With("run_id", res.RunID)
	runStart := p.nowFn()
	total := end - start + 1
	batchSize := uint64(cfg.BatchSize)

	p.mu.Lock()
	// Blocks of this run only extend the cursor when nothing between the
	// cursor and start is missing.
	blocked := p.latestIndexed != nil && *p.latestIndexed+1 < start
	p.mu.Unlock()

	log.Info("processing started",
		"start_block", start,
		"end_block", end,
		"total_blocks", total,
		"batch_size", cfg.BatchSize,
		"max_retries", cfg.MaxRetries,
	)

	var done uint64
	current := start
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batchEnd := end
		if end-current >= batchSize {
			batchEnd = current + batchSize - 1
		}

		batchStarted := p.nowFn()
		outcomes, err := p.processBatch(ctx, current, batchEnd, cfg.MaxRetries)
		var nowBlocked bool
		if err == nil {
			nowBlocked, err = p.advanceCursor(ctx, current, outcomes, blocked)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			metrics.ProcessorBatchRetries.WithLabelValues(p.chain.String()).Inc()
			log.Warn("batch failed, retrying",
				"from_block", current,
				"to_block", batchEnd,
				"retry_in", p.batchRetryDelay,
				"error", err,
			)
			p.recordBatchFailure(ctx)
			if err := p.sleep(ctx, p.batchRetryDelay); err != nil {
				return res, err
			}
			continue
		}
		blocked = nowBlocked

		batchFailed := 0
		for i, blockErr := range outcomes {
			number := current + uint64(i)
			if blockErr == nil {
				res.Processed++
				continue
			}
			batchFailed++
			res.Failed = append(res.Failed, number)
			p.reportBlockFailure(ctx, log, number, cfg.MaxRetries, blockErr)
		}
		res.Batches++

		elapsed := p.nowFn().Sub(batchStarted)
		metrics.ProcessorBatchLatency.WithLabelValues(p.chain.String()).Observe(elapsed.Seconds())
		p.health.RecordLatency(elapsed)
		if batchFailed > 0 {
			p.recordBatchFailure(ctx)
		} else if p.health.RecordSuccess() {
			p.sendAlert(ctx, alert.Alert{
				Type:    alert.AlertTypeRecovery,
				Title:   "Block processing recovered",
				Message: fmt.Sprintf("batch %d-%d completed without failures", current, batchEnd),
			})
		}

		done += batchEnd - current + 1
		percent := float64(done) / float64(total) * 100
		p.setProgress(done, total, percent)

		log.Info("batch completed",
			"from_block", current,
			"to_block", batchEnd,
			"failed_blocks", batchFailed,
			"progress", fmt.Sprintf("%.2f%%", percent),
			"elapsed", elapsed,
		)

		if batchEnd >= end {
			break
		}
		current = batchEnd + 1
		if err := p.sleep(ctx, cfg.DelayBetweenBatches); err != nil {
			return res, err
		}
	}

	res.Duration = p.nowFn().Sub(runStart)
	log.Info("processing completed",
		"processed", res.Processed,
		"failed", len(res.Failed),
		"batches", res.Batches,
		"elapsed", res.Duration,
	)
	return res, nil
}

// processBatch runs every block of [from, to] and returns one outcome per
// block. The error is non-nil only when the batch itself could not run.
func (p *Processor) processBatch(ctx context.Context, from, to uint64, maxRetries int) ([]error, error) {
	ctx, span := p.tracer.Start(ctx, "processor.processBatch",
		trace.WithAttributes(
			attribute.String("chain", p.chain.String()),
			attribute.Int64("from_block", int64(from)),
			attribute.Int64("to_block", int64(to)),
		),
	)
	defer span.End()

	n := int(to - from + 1)
	outcomes := make([]error, n)

	if !p.handler.Concurrent() {
		for i := 0; i < n; i++ {
			if err := p.guardBlock(ctx, from+uint64(i), maxRetries, &outcomes[i]); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
		return outcomes, nil
	}

	limit := p.concurrency
	if limit <= 0 || limit > n {
		limit = n
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return p.guardBlock(ctx, from+uint64(i), maxRetries, &outcomes[i])
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return outcomes, nil
}

// guardBlock stores the block's outcome in out and turns a handler panic or
// cancellation into a dispatch error.
func (p *Processor) guardBlock(ctx context.Context, number uint64, maxRetries int, out *error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: block %d: handler panic: %v", errDispatch, number, r)
		}
	}()
	*out = p.processBlock(ctx, number, maxRetries)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

// processBlock attempts the block up to maxRetries times, sleeping
// retryBackoff*attempt after each failed attempt but the last.
func (p *Processor) processBlock(ctx context.Context, number uint64, maxRetries int) error {
	ctx, span := p.tracer.Start(ctx, "processor.processBlock",
		trace.WithAttributes(
			attribute.String("chain", p.chain.String()),
			attribute.Int64("block", int64(number)),
		),
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := p.handler.ProcessBlock(ctx, number)
		if err == nil {
			metrics.ProcessorBlocksProcessed.WithLabelValues(p.chain.String()).Inc()
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt == maxRetries {
			break
		}

		backoff := p.retryBackoff * time.Duration(attempt)
		decision := retry.Classify(err)
		metrics.ProcessorBlockRetries.WithLabelValues(p.chain.String()).Inc()
		p.logger.Warn("block attempt failed",
			"block", number,
			"attempt", attempt,
			"max_retries", maxRetries,
			"backoff", backoff,
			"error_class", decision.Class,
			"error_reason", decision.Reason,
			"error", err,
		)
		if err := p.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return lastErr
}

// advanceCursor moves latest_indexed_block over the leading run of
// successful blocks in outcomes, persisting it first. It returns whether a
// failed block now blocks further advancement in this run.
func (p *Processor) advanceCursor(ctx context.Context, from uint64, outcomes []error, blocked bool) (bool, error) {
	if blocked {
		return true, nil
	}

	advanced := 0
	for _, err := range outcomes {
		if err != nil {
			blocked = true
			break
		}
		advanced++
	}
	if advanced == 0 {
		return blocked, nil
	}
	candidate := from + uint64(advanced) - 1
	if err := p.settleCursor(ctx, candidate); err != nil {
		return false, fmt.Errorf("%w: %v", errDispatch, err)
	}
	return blocked, nil
}

// settleCursor persists candidate as latest_indexed_block unless the cursor
// is already at or past it.
func (p *Processor) settleCursor(ctx context.Context, candidate uint64) error {
	p.mu.Lock()
	if p.latestIndexed != nil && *p.latestIndexed >= candidate {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if p.cursors != nil {
		cursor := &model.IndexerCursor{
			Chain:              p.chain,
			Network:            p.network,
			LatestIndexedBlock: candidate,
			UpdatedAt:          p.nowFn(),
		}
		if err := p.cursors.Save(ctx, cursor); err != nil {
			return fmt.Errorf("save cursor %d: %w", candidate, err)
		}
	}

	p.mu.Lock()
	p.latestIndexed = &candidate
	p.mu.Unlock()
	metrics.ProcessorLatestBlock.WithLabelValues(p.chain.String()).Set(float64(candidate))
	return nil
}

// cursorLags reports whether the cursor sits inside the range this sync has
// covered, [base, next), without reaching next-1. A cursor below base marks a
// gap the sync never indexed and is left alone.
func (p *Processor) cursorLags(base, next uint64) bool {
	latest, ok := p.LatestIndexedBlock()
	if !ok {
		return next > base
	}
	return latest+1 >= base && latest+1 < next
}

// retryFailed re-attempts blocks that failed in earlier passes, ascending,
// and returns those still failing. Every block in [base, next) that is not
// returned has been indexed, so the cursor moves up to the first block still
// failing, or to next-1.
func (p *Processor) retryFailed(ctx context.Context, maxRetries int, failed []uint64, base, next uint64) ([]uint64, error) {
	remaining := make([]uint64, 0, len(failed))
	for _, number := range failed {
		if err := p.processBlock(ctx, number, maxRetries); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return failed, ctxErr
			}
			p.logger.Warn("previously failed block still failing", "block", number, "error", err)
			remaining = append(remaining, number)
			continue
		}
		p.logger.Info("previously failed block indexed", "block", number)
	}

	if latest, ok := p.LatestIndexedBlock(); (ok && latest+1 < base) || next == 0 {
		return remaining, nil
	}
	target := next - 1
	if len(remaining) > 0 {
		if remaining[0] == 0 {
			return remaining, nil
		}
		target = remaining[0] - 1
	}
	// A failed save is retried on the next pass since the cursor still lags.
	if err := p.settleCursor(ctx, target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return remaining, ctxErr
		}
		p.logger.Warn("cursor save failed", "block", target, "error", err)
	}
	return remaining, nil
}

func (p *Processor) reportBlockFailure(ctx context.Context, log *slog.Logger, number uint64, maxRetries int, err error) {
	decision := retry.Classify(err)
	metrics.ProcessorBlockErrors.WithLabelValues(p.chain.String()).Inc()
	log.Error("block failed permanently",
		"block", number,
		"attempts", maxRetries,
		"error_class", decision.Class,
		"error_reason", decision.Reason,
		"error", err,
	)
	p.sendAlert(ctx, alert.Alert{
		Type:    alert.AlertTypeBlockFailed,
		Title:   "Block skipped after retries",
		Message: err.Error(),
		Fields: map[string]string{
			"block":    strconv.FormatUint(number, 10),
			"attempts": strconv.Itoa(maxRetries),
			"class":    string(decision.Class),
		},
	})
}

func (p *Processor) recordBatchFailure(ctx context.Context) {
	if p.health.RecordFailure() {
		p.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeUnhealthy,
			Title:   "Block processing unhealthy",
			Message: fmt.Sprintf("%d consecutive failed batches", p.health.Snapshot().ConsecutiveFailures),
		})
	}
}

func (p *Processor) sendAlert(ctx context.Context, a alert.Alert) {
	a.Chain = p.chain.String()
	a.Network = p.network.String()
	if err := p.alerter.Send(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("alert send failed", "type", a.Type, "error", err)
	}
}

func (p *Processor) setHead(head uint64) {
	metrics.ProcessorChainHead.WithLabelValues(p.chain.String()).Set(float64(head))
	p.mu.Lock()
	p.progress.Head = head
	p.mu.Unlock()
}

func (p *Processor) setProgress(done, total uint64, percent float64) {
	metrics.ProcessorProgressPercent.WithLabelValues(p.chain.String()).Set(percent)

	p.mu.Lock()
	p.progress.Done = done
	p.progress.Total = total
	p.progress.Percent = percent
	head := p.progress.Head
	latest := p.latestIndexed
	p.mu.Unlock()

	p.health.RecordProgress(latest, head, percent)
}
