// Package risk implements RiskGates (spec.md §4.10): the eight-gate
// pre-entry battery, Phase-1-aware where Phase-2 data is degenerate.
//
// Grounded in the teacher's weighted-signal-then-classify shape
// (internal/heuristics/realtime_risk.go's ScoreTransaction →
// classifySeverity two-step), adapted from "accumulate a score then bucket
// it" to "evaluate independent pass/fail gates then derive an overall
// level from which ones failed" since spec.md models risk as a battery of
// named checks, not a single accumulated score.
package risk

import (
	"context"

	"github.com/rawblock/dex-momentum-core/internal/token"
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

// Quoter simulates a sell to estimate price impact. Absent (nil) is a pass;
// a returned error is a gate failure — matching spec.md §4.10 gate 8
// exactly ("absent-quoter = pass; thrown error = fail").
type Quoter interface {
	SimulateSell(ctx context.Context, mint string, amountLamports int64) (priceImpactBps int32, err error)
}

// Config carries the risk thresholds spec.md §6 enumerates.
type Config struct {
	MinLiquidityBase      int64
	MinUniqueWallets      int
	MaxConcentrationPct   float64
	MaxPositionPctOfPool  float64
	TradeSizeBase         int64
	ConfirmationSeconds   float64
}

// Gates evaluates the eight-gate battery for entry decisions.
type Gates struct {
	cfg    Config
	quoter Quoter
}

// New constructs a Gates evaluator. quoter may be nil.
func New(cfg Config, quoter Quoter) *Gates {
	return &Gates{cfg: cfg, quoter: quoter}
}

// Evaluate runs all eight gates for st at nowMs given the current momentum
// score, and returns the full battery result. It never panics; any gate
// whose external dependency errors is recorded as a failure, not
// propagated.
func (g *Gates) Evaluate(ctx context.Context, st *token.State, score models.MomentumScore, nowMs int64) models.RiskResult {
	m15 := st.Metrics15s(nowMs)
	m60 := st.Metrics60s(nowMs)
	phase1, hasPhase1 := st.Phase1Stats()

	results := make([]models.GateResult, 0, 8)

	results = append(results, g.liquidityGate(st, m60, phase1, hasPhase1))
	results = append(results, g.walletDiversityGate(m60, phase1, hasPhase1))
	results = append(results, g.buyerConcentrationGate(m15, phase1, hasPhase1))
	results = append(results, g.buySellImbalanceGate(m15, phase1, hasPhase1))
	results = append(results, g.positionSizeGate(st))
	results = append(results, g.washTradingGate(m60))
	results = append(results, g.momentumConfirmationGate(score))
	results = append(results, g.sellSimulationGate(ctx, st.Mint, m15))

	return models.RiskResult{
		Approved: allPassed(results),
		Level:    deriveRiskLevel(results),
		Gates:    results,
	}
}

func allPassed(results []models.GateResult) bool {
	for _, r := range results {
		if !r.Skipped && !r.Passed {
			return false
		}
	}
	return true
}

func degenerate(unique, swaps int) bool {
	return swaps >= 10 && float64(unique)/float64(swaps) < 0.10
}

func (g *Gates) liquidityGate(st *token.State, m60 models.WindowMetrics, phase1 models.HotDetectionStats, hasPhase1 bool) models.GateResult {
	liquidity := st.EstimatedLiquidity
	if liquidity <= 0 {
		liquidity = 5 * m60.BuyNotional + 5*m60.SellNotional
	}
	if liquidity <= 0 && hasPhase1 {
		liquidity = swapVelocityLiquidityFloor(phase1.SwapsInWindow)
	}

	passed := liquidity >= g.cfg.MinLiquidityBase
	reason := "estimated liquidity meets floor"
	if !passed {
		reason = "estimated liquidity below minLiquidityBase"
	}
	return models.GateResult{Gate: models.GateLiquidity, Passed: passed, Reason: reason}
}

func swapVelocityLiquidityFloor(swaps int) int64 {
	switch {
	case swaps >= 100:
		return 50
	case swaps >= 50:
		return 20
	case swaps >= 20:
		return 10
	case swaps >= 5:
		return 5
	default:
		return 0
	}
}

func (g *Gates) walletDiversityGate(m60 models.WindowMetrics, phase1 models.HotDetectionStats, hasPhase1 bool) models.GateResult {
	unique := m60.UniqueBuyers
	if hasPhase1 && degenerate(unique, phase1.SwapsInWindow) {
		estimate := phase1.SwapsInWindow / 2
		if unique < estimate {
			unique = estimate
		}
	}

	passed := unique >= g.cfg.MinUniqueWallets
	reason := "unique buyers meet floor"
	if !passed {
		reason = "unique buyers below minUniqueWallets"
	}
	return models.GateResult{Gate: models.GateWalletDiversity, Passed: passed, Reason: reason}
}

func (g *Gates) buyerConcentrationGate(m15 models.WindowMetrics, phase1 models.HotDetectionStats, hasPhase1 bool) models.GateResult {
	if hasPhase1 && m15.SwapCount >= 20 {
		knownRatio := float64(m15.UniqueBuyers) / float64(m15.SwapCount)
		if knownRatio < 0.10 {
			return models.GateResult{Gate: models.GateBuyerConcentration, Passed: true, Skipped: true, Reason: "skipped: known-buyer ratio below 10% on >=20 swaps"}
		}
	}

	passed := m15.TopBuyerConcentration <= g.cfg.MaxConcentrationPct
	reason := "top buyer concentration within bound"
	if !passed {
		reason = "top buyer concentration exceeds maxConcentrationPct"
	}
	return models.GateResult{Gate: models.GateBuyerConcentration, Passed: passed, Reason: reason}
}

func (g *Gates) buySellImbalanceGate(m15 models.WindowMetrics, phase1 models.HotDetectionStats, hasPhase1 bool) models.GateResult {
	if m15.SellNotional == 0 && m15.SwapCount >= 5 {
		if hasPhase1 && phase1.BuyRatio >= 0.5 {
			return models.GateResult{Gate: models.GateBuySellImbalance, Passed: true, Reason: "no sell notional; Phase-1 buyRatio fallback passed"}
		}
		if !hasPhase1 {
			return models.GateResult{Gate: models.GateBuySellImbalance, Passed: true, Skipped: true, Reason: "skipped: no sell notional and no Phase-1 data"}
		}
		return models.GateResult{Gate: models.GateBuySellImbalance, Passed: false, Reason: "no sell notional; Phase-1 buyRatio below 0.5"}
	}

	if m15.SellNotional == 0 {
		return models.GateResult{Gate: models.GateBuySellImbalance, Passed: true, Skipped: true, Reason: "skipped: insufficient swaps for ratio"}
	}

	ratio := float64(m15.BuyNotional) / float64(m15.SellNotional)
	passed := ratio >= 1.0 && ratio <= 20.0
	reason := "buy/sell ratio within bound"
	if !passed {
		reason = "buy/sell ratio out of [1.0, 20.0]"
	}
	return models.GateResult{Gate: models.GateBuySellImbalance, Passed: passed, Reason: reason}
}

func (g *Gates) positionSizeGate(st *token.State) models.GateResult {
	if st.EstimatedLiquidity <= 0 {
		return models.GateResult{Gate: models.GatePositionSize, Passed: false, Reason: "no liquidity estimate available"}
	}
	pct := float64(g.cfg.TradeSizeBase) / float64(st.EstimatedLiquidity) * 100.0
	passed := pct <= g.cfg.MaxPositionPctOfPool
	reason := "position size within bound"
	if !passed {
		reason = "position size exceeds maxPositionPctOfPool"
	}
	return models.GateResult{Gate: models.GatePositionSize, Passed: passed, Reason: reason}
}

func (g *Gates) washTradingGate(m60 models.WindowMetrics) models.GateResult {
	total := uniqueCount(m60.BuyerWallets, m60.SellerWallets)
	if total == 0 {
		return models.GateResult{Gate: models.GateWashTrading, Passed: true, Skipped: true, Reason: "skipped: no participants observed"}
	}

	overlap := overlapCount(m60.BuyerWallets, m60.SellerWallets)
	ratio := float64(overlap) / float64(total)

	passed := ratio <= 0.30
	reason := "buyer/seller overlap within bound"
	if !passed {
		reason = "buyer/seller overlap exceeds 30% of participants"
	}
	return models.GateResult{Gate: models.GateWashTrading, Passed: passed, Reason: reason}
}

func uniqueCount(a, b []string) int {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	return len(set)
}

func overlapCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	count := 0
	for _, x := range b {
		if _, ok := set[x]; ok {
			count++
		}
	}
	return count
}

func (g *Gates) momentumConfirmationGate(score models.MomentumScore) models.GateResult {
	passed := score.ConsecutiveAboveEntrySeconds >= g.cfg.ConfirmationSeconds
	reason := "dwell meets confirmationSeconds"
	if !passed {
		reason = "dwell below confirmationSeconds"
	}
	return models.GateResult{Gate: models.GateMomentumConfirmation, Passed: passed, Reason: reason}
}

func (g *Gates) sellSimulationGate(ctx context.Context, mint string, m15 models.WindowMetrics) models.GateResult {
	if g.quoter == nil {
		return models.GateResult{Gate: models.GateSellSimulation, Passed: true, Skipped: true, Reason: "skipped: no quoter configured"}
	}

	impactBps, err := g.quoter.SimulateSell(ctx, mint, m15.BuyNotional)
	if err != nil {
		return models.GateResult{Gate: models.GateSellSimulation, Passed: false, Reason: "sell simulation errored"}
	}

	passed := impactBps <= 1000
	reason := "sell simulation price impact within bound"
	if !passed {
		reason = "sell simulation price impact exceeds 1000bps"
	}
	return models.GateResult{Gate: models.GateSellSimulation, Passed: passed, Reason: reason}
}

// deriveRiskLevel applies spec.md §4.10's rule: a liquidity or
// sell-simulation failure alone forces EXTREME; otherwise severity scales
// with the number of failing (non-skipped) gates.
func deriveRiskLevel(results []models.GateResult) models.RiskLevel {
	failCount := 0
	for _, r := range results {
		if r.Skipped {
			continue
		}
		if !r.Passed {
			failCount++
			if r.Gate == models.GateLiquidity || r.Gate == models.GateSellSimulation {
				return models.RiskExtreme
			}
		}
	}

	switch {
	case failCount == 0:
		return models.RiskLow
	case failCount == 1:
		return models.RiskMedium
	case failCount == 2:
		return models.RiskHigh
	default:
		return models.RiskExtreme
	}
}
