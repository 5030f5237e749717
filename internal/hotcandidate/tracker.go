// Package hotcandidate implements HotCandidateTracker (spec.md §4.6): the
// cheap Phase-1 decision of which candidates deserve expensive Phase-2
// enrichment, driven purely by log-observed swap counts.
//
// Grounded in other_examples/...solana-token-lab...active_detector.go's
// spike-detection shape (per-candidate FIFO + baseline comparison),
// generalized with the teacher's cooldown-and-counters discipline
// (internal/scanner/block_scanner.go's atomic progress counters;
// internal/heuristics/alert_system.go's bounded-history-plus-callback
// emission) applied to a per-candidate record FIFO instead of a flat alert
// log.
package hotcandidate

import (
	"sync"
	"time"
)

// Outcome is the Phase-2 result that determines which cooldown to apply.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRejected
	OutcomeNoise
)

const (
	defaultCooldownSuccess  = 3 * time.Minute
	defaultCooldownRejected = 10 * time.Minute
	defaultCooldownNoise    = 15 * time.Minute

	maxRecordsPerCandidate = 200
	baselineRecomputeCadenceMs = 30_000
)

// Record is one observed swap attributed to a candidate mint.
type Record struct {
	TimestampMs int64
	Signature   string
	IsBuy       bool
	Wallet      string
}

// HotDetectionStats mirrors models.HotDetectionStats but lives here to
// avoid an import cycle with pkg/models' wider surface; callers convert at
// the boundary (see internal/ingestion, which imports both).
type HotDetectionStats struct {
	SwapsInWindow       int
	Buys                int
	Sells               int
	BuyRatio            float64
	UniqueWallets       int
	WindowActualMs      int64
	BaselineSwapsPerMin float64
	IsNewMomentum       bool
}

type candidateState struct {
	records    []Record
	seenSigs   map[string]struct{}
	baseline   float64
	lastBaselineRecomputeMs int64

	cooldownUntilMs int64
	phase2InFlight  bool
	lastActivityMs  int64
}

// Config carries the tunables spec.md §6 enumerates for hotness detection.
type Config struct {
	HotThreshold     int
	HotWindowMs      int64
	BaselineWindowMs int64

	CooldownSuccess  time.Duration
	CooldownRejected time.Duration
	CooldownNoise    time.Duration
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		HotThreshold:     5,
		HotWindowMs:      30_000,
		BaselineWindowMs: 300_000,
		CooldownSuccess:  defaultCooldownSuccess,
		CooldownRejected: defaultCooldownRejected,
		CooldownNoise:    defaultCooldownNoise,
	}
}

// Counters are zeroed every time ReadCounters is called.
type Counters struct {
	CandidatesSeen  int64
	Phase2Started   int64
	Phase2Success   int64
	Phase2Rejected  int64
	CooldownSkips   int64
	InflightSkips   int64
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	cfg        Config
	candidates map[string]*candidateState
	callbacks  []func(mint string, stats HotDetectionStats)
	counters   Counters
}

// New constructs a Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, candidates: make(map[string]*candidateState)}
}

// OnHot registers a callback invoked synchronously whenever a candidate
// crosses the hotness threshold. Multiple callbacks may be registered.
func (t *Tracker) OnHot(cb func(mint string, stats HotDetectionStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

func (t *Tracker) pruneHorizonMs() int64 {
	h := 2 * t.cfg.HotWindowMs
	if t.cfg.BaselineWindowMs > h {
		h = t.cfg.BaselineWindowMs
	}
	return h
}

// RecordSwap registers one observed swap for candidate mint, checking
// hot-status and invoking callbacks if it now qualifies.
func (t *Tracker) RecordSwap(mint, signature string, isBuy bool, wallet string, nowMs int64) {
	t.mu.Lock()

	cs, ok := t.candidates[mint]
	if !ok {
		cs = &candidateState{seenSigs: make(map[string]struct{})}
		t.candidates[mint] = cs
		t.counters.CandidatesSeen++
	}

	if _, dup := cs.seenSigs[signature]; dup {
		t.mu.Unlock()
		return
	}
	cs.seenSigs[signature] = struct{}{}

	cs.records = append(cs.records, Record{TimestampMs: nowMs, Signature: signature, IsBuy: isBuy, Wallet: wallet})
	cs.lastActivityMs = nowMs

	horizon := t.pruneHorizonMs()
	cs.records = pruneOlderThan(cs.records, nowMs-horizon, cs.seenSigs)
	if len(cs.records) > maxRecordsPerCandidate {
		excess := len(cs.records) - maxRecordsPerCandidate
		for _, r := range cs.records[:excess] {
			delete(cs.seenSigs, r.Signature)
		}
		cs.records = cs.records[excess:]
	}

	if nowMs-cs.lastBaselineRecomputeMs >= baselineRecomputeCadenceMs {
		cs.baseline = computeBaseline(cs.records, nowMs, t.cfg.HotWindowMs, t.cfg.BaselineWindowMs)
		cs.lastBaselineRecomputeMs = nowMs
	}

	stats, hot := t.checkHot(cs, nowMs)
	cbs := append([]func(mint string, stats HotDetectionStats){}, t.callbacks...)
	t.mu.Unlock()

	if hot {
		for _, cb := range cbs {
			cb(mint, stats)
		}
	}
}

func pruneOlderThan(records []Record, cutoffMs int64, seenSigs map[string]struct{}) []Record {
	i := 0
	for i < len(records) && records[i].TimestampMs < cutoffMs {
		delete(seenSigs, records[i].Signature)
		i++
	}
	if i == 0 {
		return records
	}
	return append([]Record(nil), records[i:]...)
}

func computeBaseline(records []Record, nowMs, hotWindowMs, baselineWindowMs int64) float64 {
	lo := nowMs - baselineWindowMs
	hi := nowMs - hotWindowMs
	count := 0
	for _, r := range records {
		if r.TimestampMs >= lo && r.TimestampMs < hi {
			count++
		}
	}
	windowMinutes := float64(baselineWindowMs-hotWindowMs) / 60_000.0
	if windowMinutes <= 0 {
		return 0
	}
	return float64(count) / windowMinutes
}

// checkHot implements the per-swap hot-status check with early exits, per
// spec.md §4.6.
func (t *Tracker) checkHot(cs *candidateState, nowMs int64) (HotDetectionStats, bool) {
	if cs.cooldownUntilMs > nowMs {
		t.counters.CooldownSkips++
		return HotDetectionStats{}, false
	}
	if cs.phase2InFlight {
		t.counters.InflightSkips++
		return HotDetectionStats{}, false
	}

	lo := nowMs - t.cfg.HotWindowMs
	var swaps, buys, sells int
	uniqueWallets := make(map[string]struct{})
	anyKnownWallet := false
	for _, r := range cs.records {
		if r.TimestampMs < lo || r.TimestampMs > nowMs {
			continue
		}
		swaps++
		if r.IsBuy {
			buys++
		} else {
			sells++
		}
		if r.Wallet != "" && r.Wallet != "Unknown" {
			uniqueWallets[r.Wallet] = struct{}{}
			anyKnownWallet = true
		}
	}

	if swaps < t.cfg.HotThreshold {
		return HotDetectionStats{}, false
	}

	buyRatio := 0.0
	if swaps > 0 {
		buyRatio = float64(buys) / float64(swaps)
	}

	if anyKnownWallet {
		if len(uniqueWallets) < 4 || buyRatio < 0.5 {
			return HotDetectionStats{}, false
		}
	} else {
		if swaps < 2*t.cfg.HotThreshold {
			return HotDetectionStats{}, false
		}
	}

	isNewMomentum := cs.baseline < float64(t.cfg.HotThreshold)/2.0

	stats := HotDetectionStats{
		SwapsInWindow:       swaps,
		Buys:                buys,
		Sells:               sells,
		BuyRatio:            buyRatio,
		UniqueWallets:       len(uniqueWallets),
		WindowActualMs:      t.cfg.HotWindowMs,
		BaselineSwapsPerMin: cs.baseline,
		IsNewMomentum:       isNewMomentum,
	}
	return stats, true
}

// MarkPhase2Started flags mint as having an in-flight Phase-2 enrichment so
// concurrent hot-status checks elide a second trigger.
func (t *Tracker) MarkPhase2Started(mint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cs, ok := t.candidates[mint]; ok {
		cs.phase2InFlight = true
	}
	t.counters.Phase2Started++
}

// MarkPhase2Complete clears the in-flight flag and applies the cooldown
// matching outcome.
func (t *Tracker) MarkPhase2Complete(mint string, outcome Outcome, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.candidates[mint]
	if !ok {
		return
	}
	cs.phase2InFlight = false

	var cooldown time.Duration
	switch outcome {
	case OutcomeSuccess:
		cooldown = t.cfg.CooldownSuccess
		t.counters.Phase2Success++
	case OutcomeRejected:
		cooldown = t.cfg.CooldownRejected
		t.counters.Phase2Rejected++
	case OutcomeNoise:
		cooldown = t.cfg.CooldownNoise
		t.counters.Phase2Rejected++
	}
	cs.cooldownUntilMs = nowMs + cooldown.Milliseconds()
}

// IsPhase2InFlight reports whether mint currently has an enrichment batch
// running.
func (t *Tracker) IsPhase2InFlight(mint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.candidates[mint]
	return ok && cs.phase2InFlight
}

// ReadCounters returns the accumulated counters and zeroes them, matching
// spec.md §4.6: "exposes (and zeroes on readout)".
func (t *Tracker) ReadCounters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.counters
	t.counters = Counters{}
	return c
}

// Cleanup prunes candidates whose last activity falls outside the prune
// horizon and resets expired cooldowns. Intended to run periodically.
func (t *Tracker) Cleanup(nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	horizon := t.pruneHorizonMs()
	for mint, cs := range t.candidates {
		if cs.cooldownUntilMs > 0 && cs.cooldownUntilMs <= nowMs {
			cs.cooldownUntilMs = 0
		}
		if nowMs-cs.lastActivityMs > horizon {
			delete(t.candidates, mint)
		}
	}
}
