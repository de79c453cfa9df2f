package main

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/selendra/selendra-explorer-sub000/internal/alert"
	appmetrics "github.com/selendra/selendra-explorer-sub000/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDBStatsProvider struct {
	stats sql.DBStats
}

func (f fakeDBStatsProvider) Stats() sql.DBStats {
	return f.stats
}

type panicDBStatsProvider struct{}

func (panicDBStatsProvider) Stats() sql.DBStats {
	panic("db stats temporarily unavailable")
}

type flakyDBStatsProvider struct {
	mu        sync.Mutex
	failUntil int
	stats     sql.DBStats
	calls     int
	callCh    chan int
}

func (f *flakyDBStatsProvider) Stats() sql.DBStats {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()
	if f.callCh != nil {
		f.callCh <- calls
	}
	if calls <= f.failUntil {
		panic("db stats temporarily unavailable")
	}
	return f.stats
}

// channelAlerter sends alerts to a channel for test verification.
type channelAlerter struct {
	ch chan<- alert.Alert
}

func (c *channelAlerter) Send(_ context.Context, a alert.Alert) error {
	c.ch <- a
	return nil
}

func testGauges(suffix string) dbPoolStatsGauges {
	return dbPoolStatsGauges{
		open:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_pool_open_" + suffix}),
		inUse:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_pool_in_use_" + suffix}),
		idle:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_pool_idle_" + suffix}),
		waitCount:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_pool_wait_count_" + suffix}),
		waitDuration: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_pool_wait_duration_seconds_" + suffix}),
	}
}

func TestCollectDBPoolStats_RecordsMetrics(t *testing.T) {
	provider := fakeDBStatsProvider{
		stats: sql.DBStats{
			OpenConnections: 10,
			InUse:           3,
			Idle:            7,
			WaitCount:       13,
			WaitDuration:    1500 * time.Millisecond,
		},
	}
	gauges := testGauges("ok")

	stats, err := collectDBPoolStats(provider, gauges)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.InUse)

	assert.Equal(t, 10.0, testutil.ToFloat64(gauges.open))
	assert.Equal(t, 3.0, testutil.ToFloat64(gauges.inUse))
	assert.Equal(t, 7.0, testutil.ToFloat64(gauges.idle))
	assert.Equal(t, 13.0, testutil.ToFloat64(gauges.waitCount))
	assert.Equal(t, 1.5, testutil.ToFloat64(gauges.waitDuration))
}

func TestCollectDBPoolStats_ReturnsErrorOnPanic(t *testing.T) {
	_, err := collectDBPoolStats(panicDBStatsProvider{}, testGauges("panic"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db pool stats collection panicked")
}

func TestCollectDBPoolStats_NilProvider(t *testing.T) {
	_, err := collectDBPoolStats(nil, testGauges("nil"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestStartDBPoolStatsPump_ToleratesTransientStatsFailure(t *testing.T) {
	callCh := make(chan int, 8)
	provider := &flakyDBStatsProvider{
		failUntil: 1,
		stats: sql.DBStats{
			OpenConnections: 10,
			InUse:           3,
			Idle:            7,
		},
		callCh: callCh,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDBPoolStatsPump(ctx, provider, 5, nil, slog.Default())

	timeout := time.After(2 * time.Second)
	for {
		select {
		case count := <-callCh:
			if count >= 3 {
				assert.Equal(t, 10.0, testutil.ToFloat64(appmetrics.DBPoolOpen))
				cancel()
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for db pool stats recovery")
		}
	}
}

func TestStartDBPoolStatsPump_SendsExhaustionAlert(t *testing.T) {
	alertCh := make(chan alert.Alert, 4)
	provider := fakeDBStatsProvider{
		stats: sql.DBStats{MaxOpenConnections: 10, InUse: 9},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDBPoolStatsPump(ctx, provider, 1000, &channelAlerter{ch: alertCh}, slog.Default())

	select {
	case a := <-alertCh:
		assert.Equal(t, alert.AlertTypeDBPool, a.Type)
		assert.Contains(t, a.Message, "9/10")
	case <-time.After(2 * time.Second):
		t.Fatal("expected alert to be sent")
	}
}

func TestStartDBPoolStatsPump_DisabledInterval(t *testing.T) {
	provider := &flakyDBStatsProvider{callCh: make(chan int, 1)}
	startDBPoolStatsPump(context.Background(), provider, 0, nil, slog.Default())

	select {
	case <-provider.callCh:
		t.Fatal("pump must not sample with a zero interval")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDBPoolAlert(t *testing.T) {
	tests := []struct {
		name  string
		stats sql.DBStats
		want  bool
	}{
		{name: "above threshold", stats: sql.DBStats{MaxOpenConnections: 10, InUse: 9}, want: true},
		{name: "at threshold", stats: sql.DBStats{MaxOpenConnections: 10, InUse: 8}, want: false},
		{name: "below threshold", stats: sql.DBStats{MaxOpenConnections: 10, InUse: 5}, want: false},
		{name: "unlimited pool", stats: sql.DBStats{MaxOpenConnections: 0, InUse: 100}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := dbPoolAlert(tt.stats)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, alert.AlertTypeDBPool, a.Type)
				assert.Equal(t, "Pool usage: 9/10 (90%)", a.Message)
			}
		})
	}
}
