// Package scoring implements MomentumScorer (spec.md §4.9): a cross-token
// Welford running-statistics z-score blended with a Phase-1 hotness term,
// plus confirmation-dwell tracking and entry/exit decisions.
//
// Grounded in the teacher's weighted-additive scoring shape
// (internal/heuristics/realtime_risk.go's ScoreTransaction accumulates a
// capped composite from independently-weighted signals), replacing its
// fixed-threshold-ladder classification with the spec's z-score statistics
// since momentum, unlike coinjoin risk, is inherently a cross-population
// comparison rather than a fixed rubric.
package scoring

import (
	"math"

	"github.com/rawblock/dex-momentum-core/internal/token"
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

// welford is a numerically stable one-pass mean/variance accumulator.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) update(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

const zClamp = 6.0

// zscore returns the clamped z-score of x against the accumulator's current
// distribution, or 0 if fewer than 2 observations exist.
func (w *welford) zscore(x float64) float64 {
	if w.n < 2 {
		return 0
	}
	variance := w.m2 / float64(w.n-1)
	if variance <= 0 {
		return 0
	}
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return 0
	}
	z := (x - w.mean) / sigma
	if z > zClamp {
		return zClamp
	}
	if z < -zClamp {
		return -zClamp
	}
	return z
}

// Weights must sum to 1.0 within 0.01 (validated by config loading, not
// here — the scorer trusts its caller).
type Weights struct {
	SwapCount    float64
	NetInflow    float64
	UniqueBuyers float64
	PriceChange  float64
}

// DefaultWeights matches spec.md §8's worked scenarios.
func DefaultWeights() Weights {
	return Weights{SwapCount: 0.20, NetInflow: 0.35, UniqueBuyers: 0.25, PriceChange: 0.20}
}

// phase1NetInflowBaseUnitLamports is the Open-Question constant from
// spec.md §9 ("fixed 0.5 base-unit per swap... arbitrary"). This
// implementation keeps the fixed constant rather than deriving a trailing
// per-token average — see DESIGN.md's Open Question Decisions for why.
const phase1NetInflowBaseUnitLamports = 500_000_000 // 0.5 SOL

// flowReversalDwellMs is the fixed 5-second threshold spec.md §4.9/§8 uses
// for the flow_reversal exit trigger, independent of the configurable
// confirmationSeconds used for entry dwell.
const flowReversalDwellMs = 5_000

// Config carries the thresholds spec.md §6 enumerates for the scorer.
type Config struct {
	EntryThreshold      float64
	ExitThreshold       float64
	ConfirmationSeconds float64
	Weights             Weights
}

// Scorer holds the four global (cross-token) Welford accumulators. Updates
// are serialized by the caller through a single scoring tick per spec.md
// §5 — Scorer itself holds no lock because exactly one goroutine (the
// ingestion pipeline's tick loop) drives it.
type Scorer struct {
	cfg Config

	swapCountStats    welford
	netInflowStats    welford
	uniqueBuyersStats welford
	priceChangeStats  welford
}

// New constructs a Scorer. cfg.EntryThreshold must be strictly greater than
// cfg.ExitThreshold — validated at config-load time, not here.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

type inputs struct {
	swapCount    float64
	netInflow    float64
	uniqueBuyers float64
	priceChange  float64

	hasPhase1 bool
	phase1    models.HotDetectionStats
}

func (s *Scorer) gatherInputs(st *token.State, nowMs int64) inputs {
	m15 := st.Metrics15s(nowMs)
	m60 := st.Metrics60s(nowMs)

	in := inputs{
		swapCount:    float64(m15.SwapCount),
		netInflow:    float64(m15.NetInflow),
		uniqueBuyers: float64(m60.UniqueBuyers),
		priceChange:  m60.PriceChangePercent,
	}

	phase1, ok := st.Phase1Stats()
	if !ok {
		return in
	}
	in.hasPhase1 = true
	in.phase1 = phase1

	in.swapCount = float64(phase1.SwapsInWindow)
	in.netInflow = computeNetInflowEstimate(phase1)

	if m60.UniqueBuyers == 0 {
		estimate := phase1.SwapsInWindow / 3
		if estimate > 10 {
			estimate = 10
		}
		in.uniqueBuyers = float64(maxInt(m60.UniqueBuyers, estimate))
	}
	// priceChange: "Phase-2 proxy unchanged" — already set above.

	return in
}

func computeNetInflowEstimate(phase1 models.HotDetectionStats) float64 {
	return float64(phase1.Buys-phase1.Sells) * phase1NetInflowBaseUnitLamports
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func hotnessBase(swaps int) float64 {
	switch {
	case swaps >= 30:
		return 3.0
	case swaps >= 15:
		return 2.0
	case swaps >= 5:
		return 1.0
	default:
		return 0
	}
}

func (s *Scorer) composite(in inputs) (float64, models.ScoreComponents) {
	s.swapCountStats.update(in.swapCount)
	s.netInflowStats.update(in.netInflow)
	s.uniqueBuyersStats.update(in.uniqueBuyers)
	s.priceChangeStats.update(in.priceChange)

	comp := models.ScoreComponents{
		SwapCountZ:    s.swapCountStats.zscore(in.swapCount),
		NetInflowZ:    s.netInflowStats.zscore(in.netInflow),
		UniqueBuyersZ: s.uniqueBuyersStats.zscore(in.uniqueBuyers),
		PriceChangeZ:  s.priceChangeStats.zscore(in.priceChange),
	}

	w := s.cfg.Weights
	zComposite := w.SwapCount*comp.SwapCountZ + w.NetInflow*comp.NetInflowZ +
		w.UniqueBuyers*comp.UniqueBuyersZ + w.PriceChange*comp.PriceChangeZ

	if !in.hasPhase1 {
		return zComposite, comp
	}

	base := hotnessBase(in.phase1.SwapsInWindow)
	hotness := base
	if in.phase1.BuyRatio >= 0.8 {
		hotness *= 1.2
	}
	if in.phase1.IsNewMomentum {
		hotness *= 1.1
	}

	return 0.6*hotness + 0.4*zComposite, comp
}

// Tick computes the current MomentumScore for st, advances its dwell
// counters, and returns the exit reason (if any) alongside it.
// momentum_decay takes precedence over flow_reversal when both conditions
// hold in the same tick, per spec.md §8 property 10.
func (s *Scorer) Tick(st *token.State, nowMs int64) (models.MomentumScore, models.ExitReason) {
	in := s.gatherInputs(st, nowMs)
	total, comp := s.composite(in)

	aboveEntry := total >= s.cfg.EntryThreshold
	belowExit := total < s.cfg.ExitThreshold

	m15 := st.Metrics15s(nowMs)
	negativeInflow := m15.NetInflow < 0

	st.UpdateDwell(nowMs, aboveEntry, negativeInflow)

	dwellSeconds := float64(st.ConsecutiveMsAboveEntry) / 1000.0
	negativeDwellMs := st.ConsecutiveMsNegativeInflow

	score := models.MomentumScore{
		TokenMint:                    st.Mint,
		TimestampMs:                  nowMs,
		TotalScore:                   total,
		Components:                   comp,
		IsAboveEntryThreshold:        aboveEntry,
		IsAboveExitThreshold:         !belowExit,
		ConsecutiveAboveEntrySeconds: dwellSeconds,
	}

	reason := models.ExitReasonNone
	switch {
	case belowExit:
		reason = models.ExitReasonMomentumDecay
	case negativeDwellMs >= flowReversalDwellMs:
		reason = models.ExitReasonFlowReversal
	}

	return score, reason
}

// IsEntryReady reports whether score qualifies for entry: above threshold
// AND dwell has held for at least confirmationSeconds. Neither condition
// alone suffices (spec.md §8 property 9).
func (s *Scorer) IsEntryReady(score models.MomentumScore) bool {
	return score.IsAboveEntryThreshold && score.ConsecutiveAboveEntrySeconds >= s.cfg.ConfirmationSeconds
}
