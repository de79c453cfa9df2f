package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/selendra/selendra-explorer-sub000/internal/alert"
	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline"
	"github.com/selendra/selendra-explorer-sub000/internal/pipeline/processor/mocks"
	"github.com/selendra/selendra-explorer-sub000/internal/store/memory"
	storemocks "github.com/selendra/selendra-explorer-sub000/internal/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
	onCall func(d time.Duration) error
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	onCall := r.onCall
	r.mu.Unlock()
	if onCall != nil {
		if err := onCall(d); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (a *recordingAlerter) Send(_ context.Context, al alert.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
	return nil
}

func (a *recordingAlerter) ofType(t alert.AlertType) []alert.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []alert.Alert
	for _, al := range a.alerts {
		if al.Type == t {
			out = append(out, al)
		}
	}
	return out
}

func newHandler(t *testing.T, chain model.Chain, concurrent bool) *mocks.MockBlockHandler {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := mocks.NewMockBlockHandler(ctrl)
	h.EXPECT().Chain().Return(chain).AnyTimes()
	h.EXPECT().Concurrent().Return(concurrent).AnyTimes()
	return h
}

func newTestProcessor(handler BlockHandler, logger *slog.Logger, opts ...Option) (*Processor, *sleepRecorder) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := New(handler, logger, opts...)
	rec := &sleepRecorder{}
	p.sleepFn = rec.sleep
	return p, rec
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func TestStartProcessing_TwoBatchesAndProgress(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	var order []uint64
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		order = append(order, n)
		return nil
	}).Times(10)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	p, rec := newTestProcessor(h, logger)

	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		StartBlock:          0,
		EndBlock:            uint64Ptr(9),
		BatchSize:           5,
		DelayBetweenBatches: time.Second,
		MaxRetries:          3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 10, res.Processed)
	assert.Empty(t, res.Failed)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Equal(t, []time.Duration{time.Second}, rec.recorded(), "delay only between batches")

	assert.Contains(t, logs.String(), `"progress":"50.00%"`)
	assert.Contains(t, logs.String(), `"progress":"100.00%"`)

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(9), latest)

	progress := p.Progress()
	assert.Equal(t, uint64(10), progress.Done)
	assert.Equal(t, uint64(10), progress.Total)
	assert.InDelta(t, 100.0, progress.Percent, 0.001)
	assert.Equal(t, string(pipeline.HealthStatusHealthy), p.Health().Snapshot().Status)
}

func TestStartProcessing_RetryExhaustion(t *testing.T) {
	for _, tc := range []struct {
		maxRetries int
		backoffs   []time.Duration
	}{
		{3, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}},
		{4, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 1500 * time.Millisecond}},
	} {
		h := newHandler(t, model.ChainEVM, false)
		failing := errors.New("eth_getBlockByNumber: connection refused")
		h.EXPECT().ProcessBlock(gomock.Any(), uint64(2)).Return(failing).Times(tc.maxRetries)
		h.EXPECT().ProcessBlock(gomock.Any(), gomock.Not(uint64(2))).Return(nil).Times(4)

		alerts := &recordingAlerter{}
		p, rec := newTestProcessor(h, nil, WithAlerter(alerts))
		before := testutil.ToFloat64(metrics.ProcessorBlockErrors.WithLabelValues("evm"))

		res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
			StartBlock: 0,
			EndBlock:   uint64Ptr(4),
			BatchSize:  5,
			MaxRetries: tc.maxRetries,
		})
		require.NoError(t, err)

		assert.Equal(t, []uint64{2}, res.Failed)
		assert.Equal(t, 4, res.Processed, "blocks after the failed one still run")
		assert.Equal(t, tc.backoffs, rec.recorded())
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.ProcessorBlockErrors.WithLabelValues("evm")))

		failed := alerts.ofType(alert.AlertTypeBlockFailed)
		require.Len(t, failed, 1)
		assert.Equal(t, "2", failed[0].Fields["block"])
		assert.Equal(t, "evm", failed[0].Chain)

		latest, ok := p.LatestIndexedBlock()
		require.True(t, ok)
		assert.Equal(t, uint64(1), latest, "cursor stops before the failed block")
	}
}

func TestStartProcessing_RecoversOnLaterAttempt(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	gomock.InOrder(
		h.EXPECT().ProcessBlock(gomock.Any(), uint64(0)).Return(errors.New("timeout")),
		h.EXPECT().ProcessBlock(gomock.Any(), uint64(0)).Return(nil),
	)

	p, rec := newTestProcessor(h, nil)
	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{EndBlock: uint64Ptr(0), MaxRetries: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.recorded())
}

func TestStartProcessing_CursorNeverSkips(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, true)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		if n == 1 {
			return errors.New("chain_getBlock: http status 502")
		}
		return nil
	}).AnyTimes()

	cursors := memory.NewCursorRepo()
	p, _ := newTestProcessor(h, nil, WithCursorRepository(cursors), WithNetwork(model.NetworkTestnet))

	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		EndBlock:   uint64Ptr(9),
		BatchSize:  5,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, res.Failed)
	assert.Equal(t, 9, res.Processed)

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(0), latest)

	persisted, err := cursors.Get(context.Background(), model.ChainSubstrate, model.NetworkTestnet)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, uint64(0), persisted.LatestIndexedBlock)
}

func TestStartProcessing_ConcurrencyLimit(t *testing.T) {
	h := newHandler(t, model.ChainEVM, true)
	var inFlight, maxInFlight atomic.Int32
	var calls atomic.Int32
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ uint64) error {
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}).AnyTimes()

	p, _ := newTestProcessor(h, nil, WithConcurrency(2))
	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		StartBlock: 100,
		EndBlock:   uint64Ptr(107),
		BatchSize:  8,
		MaxRetries: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, res.Processed)
	assert.Equal(t, int32(8), calls.Load())
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestStartProcessing_BatchRetryAfterDispatchFailure(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	var panicked atomic.Bool
	var calls atomic.Int32
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		calls.Add(1)
		if n == 3 && panicked.CompareAndSwap(false, true) {
			panic("unexpected nil header")
		}
		return nil
	}).AnyTimes()

	p, rec := newTestProcessor(h, nil)
	before := testutil.ToFloat64(metrics.ProcessorBatchRetries.WithLabelValues("substrate"))

	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		StartBlock: 0,
		EndBlock:   uint64Ptr(4),
		BatchSize:  5,
		MaxRetries: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, int32(4+5), calls.Load(), "whole batch runs again")
	assert.Equal(t, []time.Duration{DefaultBatchRetryDelay}, rec.recorded())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ProcessorBatchRetries.WithLabelValues("substrate")))

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(4), latest)
}

func TestStartProcessing_CursorSaveFailureRetriesBatch(t *testing.T) {
	h := newHandler(t, model.ChainEVM, false)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).Return(nil).Times(4)

	ctrl := gomock.NewController(t)
	cursors := storemocks.NewMockCursorRepository(ctrl)
	cursors.EXPECT().Get(gomock.Any(), model.ChainEVM, model.NetworkMainnet).Return(nil, nil)
	gomock.InOrder(
		cursors.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
		cursors.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *model.IndexerCursor) error {
			assert.Equal(t, uint64(11), c.LatestIndexedBlock)
			return nil
		}),
	)

	p, rec := newTestProcessor(h, nil, WithCursorRepository(cursors))
	_, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		StartBlock: 10,
		EndBlock:   uint64Ptr(11),
		BatchSize:  2,
		MaxRetries: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultBatchRetryDelay}, rec.recorded())
}

func TestStartProcessing_EndDefaultsToHead(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, true)
	h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(3), nil).Times(1)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	p, _ := newTestProcessor(h, nil)
	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{StartBlock: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.End)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, uint64(3), p.Progress().Head)
}

func TestStartProcessing_StartPastHead(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, true)
	h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(3), nil)

	p, _ := newTestProcessor(h, nil)
	res, err := p.StartProcessing(context.Background(), model.ProcessingConfig{StartBlock: 10})
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Zero(t, res.Batches)
}

func TestStartProcessing_Errors(t *testing.T) {
	h := newHandler(t, model.ChainEVM, true)
	p, _ := newTestProcessor(h, nil)

	_, err := p.StartProcessing(context.Background(), model.ProcessingConfig{StartBlock: 5, EndBlock: uint64Ptr(4)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid processing config")

	h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(0), model.NewProviderError("eth_blockNumber", errors.New("eof")))
	_, err = p.StartProcessing(context.Background(), model.ProcessingConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestStartProcessing_CancelledDuringBatchDelay(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil)
	rec.onCall = func(time.Duration) error {
		cancel()
		return nil
	}

	res, err := p.StartProcessing(ctx, model.ProcessingConfig{
		EndBlock:            uint64Ptr(9),
		BatchSize:           2,
		DelayBetweenBatches: time.Second,
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Batches)
}

func TestStartContinuousSync_FollowsHead(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	gomock.InOrder(
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(2), nil),
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(2), nil),
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(4), nil),
	)
	var processed []uint64
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		processed = append(processed, n)
		return nil
	}).Times(5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil, WithBlockTime(2*time.Second))
	var blockSleeps int
	rec.onCall = func(d time.Duration) error {
		if d == 2*time.Second {
			blockSleeps++
			if blockSleeps == 3 {
				cancel()
			}
		}
		return nil
	}

	err := p.StartContinuousSync(ctx, model.ProcessingConfig{BatchSize: 10, MaxRetries: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, processed)

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(4), latest)
}

func TestStartContinuousSync_ResumesFromPersistedCursor(t *testing.T) {
	h := newHandler(t, model.ChainEVM, false)
	h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(7), nil)
	var processed []uint64
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		processed = append(processed, n)
		return nil
	}).Times(3)

	cursors := memory.NewCursorRepo()
	require.NoError(t, cursors.Save(context.Background(), &model.IndexerCursor{
		Chain:              model.ChainEVM,
		Network:            model.NetworkMainnet,
		LatestIndexedBlock: 4,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil, WithCursorRepository(cursors))
	rec.onCall = func(d time.Duration) error {
		if d == DefaultBlockTime {
			cancel()
		}
		return nil
	}

	err := p.StartContinuousSync(ctx, model.ProcessingConfig{StartBlock: 0, BatchSize: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{5, 6, 7}, processed)

	persisted, err := cursors.Get(context.Background(), model.ChainEVM, model.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), persisted.LatestIndexedBlock)
}

func TestStartContinuousSync_RetriesFailedBlocksOnLaterPasses(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	gomock.InOrder(
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(3), nil),
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(3), nil),
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(3), nil),
	)
	var (
		mu        sync.Mutex
		processed []uint64
		attempts1 int
	)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n uint64) error {
		mu.Lock()
		defer mu.Unlock()
		processed = append(processed, n)
		if n == 1 {
			attempts1++
			if attempts1 <= 2 {
				return errors.New("chain_getBlock: http status 503")
			}
		}
		return nil
	}).AnyTimes()

	cursors := memory.NewCursorRepo()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil, WithCursorRepository(cursors), WithBlockTime(time.Second))
	var blockSleeps int
	rec.onCall = func(d time.Duration) error {
		if d != time.Second {
			return nil
		}
		blockSleeps++
		if blockSleeps == 1 {
			latest, ok := p.LatestIndexedBlock()
			assert.True(t, ok)
			assert.Equal(t, uint64(0), latest, "failed block holds the cursor")
		}
		if blockSleeps == 3 {
			cancel()
		}
		return nil
	}

	err := p.StartContinuousSync(ctx, model.ProcessingConfig{BatchSize: 10, MaxRetries: 1})
	assert.ErrorIs(t, err, context.Canceled)

	// pass 1: 0..3 with 1 failing; pass 2: 1 fails again; pass 3: 1 succeeds
	assert.Equal(t, []uint64{0, 1, 2, 3, 1, 1}, processed)

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(3), latest)

	persisted, err := cursors.Get(context.Background(), model.ChainSubstrate, model.NetworkMainnet)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, uint64(3), persisted.LatestIndexedBlock)
}

func TestStartContinuousSync_LeavesConfiguredGapAlone(t *testing.T) {
	h := newHandler(t, model.ChainEVM, false)
	h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(12), nil).AnyTimes()
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	cursors := memory.NewCursorRepo()
	require.NoError(t, cursors.Save(context.Background(), &model.IndexerCursor{
		Chain:              model.ChainEVM,
		Network:            model.NetworkMainnet,
		LatestIndexedBlock: 4,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil, WithCursorRepository(cursors))
	var blockSleeps int
	rec.onCall = func(d time.Duration) error {
		if d == DefaultBlockTime {
			blockSleeps++
			if blockSleeps == 2 {
				cancel()
			}
		}
		return nil
	}

	err := p.StartContinuousSync(ctx, model.ProcessingConfig{StartBlock: 10, BatchSize: 10})
	assert.ErrorIs(t, err, context.Canceled)

	latest, ok := p.LatestIndexedBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(4), latest, "blocks 5-9 were never indexed")
}

func TestStartContinuousSync_HeadErrorsAreRetried(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	gomock.InOrder(
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(0), errors.New("chain_getFinalizedHead: timeout")),
		h.EXPECT().HeadBlock(gomock.Any()).Return(uint64(0), nil),
	)
	h.EXPECT().ProcessBlock(gomock.Any(), uint64(0)).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p, rec := newTestProcessor(h, nil)
	var sleeps int
	rec.onCall = func(time.Duration) error {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
		return nil
	}

	err := p.StartContinuousSync(ctx, model.ProcessingConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartProcessing_UnhealthyAlertAfterRepeatedFailures(t *testing.T) {
	h := newHandler(t, model.ChainSubstrate, false)
	h.EXPECT().ProcessBlock(gomock.Any(), gomock.Any()).Return(errors.New("boom")).AnyTimes()

	alerts := &recordingAlerter{}
	p, _ := newTestProcessor(h, nil, WithAlerter(alerts), WithNetwork(model.NetworkDevnet))

	_, err := p.StartProcessing(context.Background(), model.ProcessingConfig{
		EndBlock:   uint64Ptr(uint64(pipeline.DefaultUnhealthyThreshold - 1)),
		BatchSize:  1,
		MaxRetries: 1,
	})
	require.NoError(t, err)

	assert.Len(t, alerts.ofType(alert.AlertTypeBlockFailed), pipeline.DefaultUnhealthyThreshold)
	assert.Len(t, alerts.ofType(alert.AlertTypeUnhealthy), 1)
	assert.Equal(t, string(pipeline.HealthStatusUnhealthy), p.Health().Snapshot().Status)
	_, ok := p.LatestIndexedBlock()
	assert.False(t, ok)
}
