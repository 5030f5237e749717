// Package token implements TokenState and TokenUniverse (spec.md §4.5): the
// per-token window bundle plus the registry that admits mints and evicts
// inactive tokens.
package token

import (
	"sync"

	"github.com/rawblock/dex-momentum-core/internal/window"
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

const (
	Window5sMs  int64 = 5_000
	Window15sMs int64 = 15_000
	Window60sMs int64 = 60_000
)

// State is a per-token bundle of windows, lifecycle timestamps, and dwell
// trackers. All mutation is serialized by mu, since the ingestion pipeline
// and the universe's periodic tick both touch it.
type State struct {
	mu sync.Mutex

	Mint                   string
	FirstSeenTimestampMs   int64
	LastActivityTimestampMs int64
	AllTimeSwapCount       int64

	w5s, w15s, w60s *window.Window

	EstimatedPrice      int64
	EstimatedLiquidity  int64

	phase1Stats *models.HotDetectionStats

	ConsecutiveMsAboveEntry     int64
	ConsecutiveMsNegativeInflow int64
	lastDwellTickMs             int64
}

// NewState constructs a fresh per-token state admitted at nowMs.
func NewState(mint string, nowMs int64) *State {
	return &State{
		Mint:                 mint,
		FirstSeenTimestampMs: nowMs,
		LastActivityTimestampMs: nowMs,
		w5s:  window.New(Window5sMs),
		w15s: window.New(Window15sMs),
		w60s: window.New(Window60sMs),
	}
}

// RecordSwap applies a swap event to every window and advances lifecycle
// timestamps. The caller is responsible for having already validated the
// event belongs to this token's mint.
func (s *State) RecordSwap(event models.SwapEvent, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w5s.Add(event, nowMs)
	s.w15s.Add(event, nowMs)
	s.w60s.Add(event, nowMs)

	s.AllTimeSwapCount++
	s.LastActivityTimestampMs = nowMs

	// The 60s price proxy doubles as the liquidity-proxy input the risk
	// gates fall back on; keep a cheap running estimate rather than
	// requiring a pool-state fetch on every swap.
	if event.NotionalBase > s.EstimatedLiquidity {
		s.EstimatedLiquidity = event.NotionalBase * 10
	}
}

// Tick forces lazy expiry across all three windows without recording a new
// event, and advances the dwell counters from aboveEntry/negativeInflow
// flags the scorer computes from the freshly-ticked metrics.
func (s *State) Tick(nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w5s.Tick(nowMs)
	s.w15s.Tick(nowMs)
	s.w60s.Tick(nowMs)
}

// Metrics5s, Metrics15s, Metrics60s return snapshots of the three fixed
// windows, forcing expiry first.
func (s *State) Metrics5s(nowMs int64) models.WindowMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w5s.Metrics(nowMs)
}

func (s *State) Metrics15s(nowMs int64) models.WindowMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w15s.Metrics(nowMs)
}

func (s *State) Metrics60s(nowMs int64) models.WindowMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w60s.Metrics(nowMs)
}

// Phase1Stats returns the immutable Phase-1 snapshot, if one was ever set.
func (s *State) Phase1Stats() (models.HotDetectionStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase1Stats == nil {
		return models.HotDetectionStats{}, false
	}
	return *s.phase1Stats, true
}

// SetPhase1StatsOnce attaches the Phase-1 snapshot captured at hot-trigger
// time. Per spec.md's invariant, once set it never mutates — a second call
// is a no-op.
func (s *State) SetPhase1StatsOnce(stats models.HotDetectionStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase1Stats != nil {
		return
	}
	cp := stats
	s.phase1Stats = &cp
}

// UpdateDwell advances the two dwell counters by the elapsed wall-clock time
// since the last dwell tick — never by a fixed tick period — so dwell
// duration is driven only by monotonic wall-clock progress, exactly as
// spec.md §5's ordering guarantee requires.
func (s *State) UpdateDwell(nowMs int64, aboveEntry, negativeInflow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var elapsed int64
	if s.lastDwellTickMs > 0 && nowMs > s.lastDwellTickMs {
		elapsed = nowMs - s.lastDwellTickMs
	}
	s.lastDwellTickMs = nowMs

	if aboveEntry {
		s.ConsecutiveMsAboveEntry += elapsed
	} else {
		s.ConsecutiveMsAboveEntry = 0
	}

	if negativeInflow {
		s.ConsecutiveMsNegativeInflow += elapsed
	} else {
		s.ConsecutiveMsNegativeInflow = 0
	}
}

func (s *State) isInactive(nowMs, inactivityTimeoutMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nowMs-s.LastActivityTimestampMs > inactivityTimeoutMs
}
