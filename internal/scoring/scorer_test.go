package scoring

import (
	"testing"

	"github.com/rawblock/dex-momentum-core/internal/token"
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

func TestWelfordZScoreRequiresTwoSamples(t *testing.T) {
	var w welford
	w.update(5)
	if got := w.zscore(5); got != 0 {
		t.Errorf("zscore with n=1 = %f, want 0", got)
	}
}

func TestWelfordZScoreClampsAtSix(t *testing.T) {
	var w welford
	for _, x := range []float64{0, 2, 0, 2} {
		w.update(x)
	}
	if got := w.zscore(100); got != zClamp {
		t.Errorf("zscore(100) = %f, want clamp %f", got, zClamp)
	}
	if got := w.zscore(-100); got != -zClamp {
		t.Errorf("zscore(-100) = %f, want -clamp %f", got, -zClamp)
	}
}

func TestWelfordZScoreZeroVariance(t *testing.T) {
	var w welford
	w.update(3)
	w.update(3)
	if got := w.zscore(3); got != 0 {
		t.Errorf("zscore with zero variance = %f, want 0", got)
	}
}

func TestHotnessBase(t *testing.T) {
	cases := map[int]float64{
		0:  0,
		4:  0,
		5:  1.0,
		14: 1.0,
		15: 2.0,
		29: 2.0,
		30: 3.0,
		50: 3.0,
	}
	for swaps, want := range cases {
		if got := hotnessBase(swaps); got != want {
			t.Errorf("hotnessBase(%d) = %f, want %f", swaps, got, want)
		}
	}
}

func TestCompositeWithoutPhase1MatchesWeightedZSum(t *testing.T) {
	s := New(Config{Weights: Weights{SwapCount: 0.2, NetInflow: 0.3, UniqueBuyers: 0.3, PriceChange: 0.2}})

	total1, _ := s.composite(inputs{swapCount: 1, netInflow: 1, uniqueBuyers: 1, priceChange: 1})
	if total1 != 0 {
		t.Errorf("first observation should produce zero z-scores, got total %f", total1)
	}

	total2, comp2 := s.composite(inputs{swapCount: 5, netInflow: 10, uniqueBuyers: 2, priceChange: -3})
	want := 0.2*comp2.SwapCountZ + 0.3*comp2.NetInflowZ + 0.3*comp2.UniqueBuyersZ + 0.2*comp2.PriceChangeZ
	if total2 != want {
		t.Errorf("composite total = %f, want weighted sum %f", total2, want)
	}
}

func TestCompositeWithPhase1BlendsHotnessAndZComposite(t *testing.T) {
	s := New(Config{Weights: Weights{SwapCount: 0.25, NetInflow: 0.25, UniqueBuyers: 0.25, PriceChange: 0.25}})

	in := inputs{
		hasPhase1: true,
		phase1: models.HotDetectionStats{
			SwapsInWindow: 30,
			BuyRatio:      0.9,
			IsNewMomentum: true,
		},
	}
	total, _ := s.composite(in)

	// First observation: z-composite is 0, so total is purely 0.6*hotness.
	// hotnessBase(30)=3.0, *1.2 (buyRatio>=0.8), *1.1 (new momentum) = 3.96.
	want := 0.6 * 3.96
	if diff := total - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("composite with phase1 = %f, want %f", total, want)
	}
}

func TestComputeNetInflowEstimate(t *testing.T) {
	got := computeNetInflowEstimate(models.HotDetectionStats{Buys: 10, Sells: 4})
	want := float64(6) * phase1NetInflowBaseUnitLamports
	if got != want {
		t.Errorf("computeNetInflowEstimate = %f, want %f", got, want)
	}
}

func TestGatherInputsWithoutPhase1(t *testing.T) {
	s := New(Config{})
	st := token.NewState("mintA", 0)
	st.RecordSwap(models.SwapEvent{TimestampMs: 0, Direction: models.Buy, NotionalBase: 1_000_000_000, WalletAddress: "w1"}, 0)

	in := s.gatherInputs(st, 0)
	if in.hasPhase1 {
		t.Fatal("expected hasPhase1 false without Phase-1 stats set")
	}
	if in.swapCount != 1 {
		t.Errorf("swapCount = %f, want 1", in.swapCount)
	}
}

func TestGatherInputsWithPhase1SubstitutesUniqueBuyers(t *testing.T) {
	s := New(Config{})
	st := token.NewState("mintA", 0)
	st.SetPhase1StatsOnce(models.HotDetectionStats{SwapsInWindow: 9, Buys: 7, Sells: 2})

	in := s.gatherInputs(st, 0)
	if !in.hasPhase1 {
		t.Fatal("expected hasPhase1 true once Phase-1 stats are set")
	}
	if in.swapCount != 9 {
		t.Errorf("swapCount = %f, want 9 (substituted from Phase-1)", in.swapCount)
	}
	// No Metrics60s buyers observed, so estimate = swaps/3 capped at 10 = 3.
	if in.uniqueBuyers != 3 {
		t.Errorf("uniqueBuyers = %f, want 3", in.uniqueBuyers)
	}
}

func TestTickExitReasonMomentumDecayPrecedence(t *testing.T) {
	s := New(Config{EntryThreshold: 5.0, ExitThreshold: 0.5, ConfirmationSeconds: 2})
	st := token.NewState("mintA", 0)
	st.RecordSwap(models.SwapEvent{TimestampMs: 0, Direction: models.Sell, NotionalBase: 1_000_000_000, WalletAddress: "w1"}, 0)

	// First tick: composite is 0 (insufficient stats), below ExitThreshold(0.5)
	// and net inflow is negative, so both decay and reversal conditions could
	// hold — momentum_decay must take precedence.
	_, reason := s.Tick(st, 0)
	if reason != models.ExitReasonMomentumDecay {
		t.Errorf("exit reason = %v, want MomentumDecay", reason)
	}
}

func TestIsEntryReadyRequiresBothConditions(t *testing.T) {
	s := New(Config{ConfirmationSeconds: 3})

	notAbove := models.MomentumScore{IsAboveEntryThreshold: false, ConsecutiveAboveEntrySeconds: 10}
	if s.IsEntryReady(notAbove) {
		t.Error("expected IsEntryReady false when score is not above entry threshold")
	}

	notDwelled := models.MomentumScore{IsAboveEntryThreshold: true, ConsecutiveAboveEntrySeconds: 1}
	if s.IsEntryReady(notDwelled) {
		t.Error("expected IsEntryReady false when dwell time is below confirmationSeconds")
	}

	ready := models.MomentumScore{IsAboveEntryThreshold: true, ConsecutiveAboveEntrySeconds: 3}
	if !s.IsEntryReady(ready) {
		t.Error("expected IsEntryReady true once both conditions hold")
	}
}
