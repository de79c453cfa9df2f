// Package pipeline holds state shared by the per-chain block processors.
package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/selendra/selendra-explorer-sub000/internal/domain/model"
	"github.com/selendra/selendra-explorer-sub000/internal/metrics"
)

// HealthStatus represents the health state of a processor.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusInactive  HealthStatus = "INACTIVE"

	// DefaultUnhealthyThreshold is the number of consecutive failed batches
	// before a processor is considered unhealthy.
	DefaultUnhealthyThreshold = 5

	// DefaultDegradedLatencyThreshold is the P95 batch duration above which
	// a processor is considered degraded.
	DefaultDegradedLatencyThreshold = 30 * time.Second

	latencyWindowSize = 10
)

var statusGaugeValue = map[HealthStatus]float64{
	HealthStatusUnknown:   0,
	HealthStatusHealthy:   1,
	HealthStatusDegraded:  1,
	HealthStatusUnhealthy: 2,
	HealthStatusInactive:  3,
}

// PipelineHealth tracks batch outcomes and progress of one processor.
type PipelineHealth struct {
	mu                       sync.RWMutex
	chain                    model.Chain
	network                  model.Network
	status                   HealthStatus
	consecutiveFailures      int
	lastSuccessAt            *time.Time
	lastFailureAt            *time.Time
	unhealthyThreshold       int
	recentLatencies          []time.Duration
	degradedLatencyThreshold time.Duration
	latestIndexedBlock       *uint64
	chainHead                uint64
	progressPercent          float64
	nowFn                    func() time.Time
}

func NewPipelineHealth(chain model.Chain, network model.Network) *PipelineHealth {
	h := &PipelineHealth{
		chain:                    chain,
		network:                  network,
		status:                   HealthStatusUnknown,
		unhealthyThreshold:       DefaultUnhealthyThreshold,
		recentLatencies:          make([]time.Duration, 0, latencyWindowSize),
		degradedLatencyThreshold: DefaultDegradedLatencyThreshold,
		nowFn:                    time.Now,
	}
	h.export()
	return h
}

func (h *PipelineHealth) Chain() model.Chain {
	return h.chain
}

func (h *PipelineHealth) SetStatus(status HealthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.export()
}

// RecordSuccess records a batch in which every block succeeded. It reports
// whether the processor recovered from UNHEALTHY.
func (h *PipelineHealth) RecordSuccess() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	if h.isLatencyDegraded() {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	h.export()
	return wasUnhealthy
}

// RecordFailure records a batch with a permanent block failure or a
// dispatch error. It reports whether the processor just became UNHEALTHY.
func (h *PipelineHealth) RecordFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	transitioned := false
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		transitioned = true
	}
	h.export()
	return transitioned
}

// RecordLatency records a batch duration and updates the degraded state.
func (h *PipelineHealth) RecordLatency(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.recentLatencies) >= latencyWindowSize {
		h.recentLatencies = h.recentLatencies[1:]
	}
	h.recentLatencies = append(h.recentLatencies, d)

	if h.status == HealthStatusHealthy || h.status == HealthStatusDegraded {
		if h.isLatencyDegraded() {
			h.status = HealthStatusDegraded
		} else if h.status == HealthStatusDegraded && h.consecutiveFailures == 0 {
			h.status = HealthStatusHealthy
		}
	}
	h.export()
}

// RecordProgress stores the processor's cursor, head and percent complete.
func (h *PipelineHealth) RecordProgress(latest *uint64, head uint64, percent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if latest != nil {
		v := *latest
		h.latestIndexedBlock = &v
	}
	h.chainHead = head
	h.progressPercent = percent
}

// must be called with mu held
func (h *PipelineHealth) isLatencyDegraded() bool {
	if len(h.recentLatencies) < 2 {
		return false
	}
	return h.percentileLatency(95) > h.degradedLatencyThreshold
}

// must be called with mu held
func (h *PipelineHealth) percentileLatency(pct int) time.Duration {
	n := len(h.recentLatencies)
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, h.recentLatencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (pct*n - 1) / 100
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// must be called with mu held
func (h *PipelineHealth) export() {
	labels := []string{h.chain.String(), h.network.String()}
	metrics.PipelineHealthStatus.WithLabelValues(labels...).Set(statusGaugeValue[h.status])
	metrics.PipelineConsecutiveFailures.WithLabelValues(labels...).Set(float64(h.consecutiveFailures))
}

func (h *PipelineHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := HealthSnapshot{
		Chain:               h.chain.String(),
		Network:             h.network.String(),
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		ChainHead:           h.chainHead,
		ProgressPercent:     h.progressPercent,
	}
	if h.latestIndexedBlock != nil {
		v := *h.latestIndexedBlock
		snap.LatestIndexedBlock = &v
	}
	return snap
}

// HealthSnapshot is a point-in-time view of processor health (JSON-safe).
type HealthSnapshot struct {
	Chain               string     `json:"chain"`
	Network             string     `json:"network"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LatestIndexedBlock  *uint64    `json:"latest_indexed_block,omitempty"`
	ChainHead           uint64     `json:"chain_head"`
	ProgressPercent     float64    `json:"progress_percent"`
}

// HealthBoard aggregates the health of every running processor.
type HealthBoard struct {
	mu     sync.RWMutex
	health []*PipelineHealth
}

func NewHealthBoard() *HealthBoard {
	return &HealthBoard{}
}

func (b *HealthBoard) Register(h *PipelineHealth) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.health = append(b.health, h)
}

func (b *HealthBoard) Snapshots() []HealthSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]HealthSnapshot, 0, len(b.health))
	for _, h := range b.health {
		out = append(out, h.Snapshot())
	}
	return out
}

// Healthy is false when any registered processor is UNHEALTHY.
func (b *HealthBoard) Healthy() bool {
	for _, s := range b.Snapshots() {
		if s.Status == string(HealthStatusUnhealthy) {
			return false
		}
	}
	return true
}
