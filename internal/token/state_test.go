package token

import (
	"testing"

	"github.com/rawblock/dex-momentum-core/pkg/models"
)

func buySwap(ts, notional int64, wallet string) models.SwapEvent {
	return models.SwapEvent{
		TimestampMs:   ts,
		Direction:     models.Buy,
		NotionalBase:  notional,
		WalletAddress: wallet,
	}
}

func TestNewStateInitializesLifecycle(t *testing.T) {
	s := NewState("mintA", 1000)
	if s.Mint != "mintA" {
		t.Errorf("Mint = %q, want mintA", s.Mint)
	}
	if s.FirstSeenTimestampMs != 1000 || s.LastActivityTimestampMs != 1000 {
		t.Error("expected lifecycle timestamps seeded to admission time")
	}
	if s.AllTimeSwapCount != 0 {
		t.Error("expected zero swaps on a fresh state")
	}
}

func TestRecordSwapAdvancesAllWindows(t *testing.T) {
	s := NewState("mintA", 0)
	s.RecordSwap(buySwap(0, 1_000_000_000, "walletA"), 0)

	for name, m := range map[string]models.WindowMetrics{
		"5s":  s.Metrics5s(0),
		"15s": s.Metrics15s(0),
		"60s": s.Metrics60s(0),
	} {
		if m.SwapCount != 1 {
			t.Errorf("%s window: SwapCount = %d, want 1", name, m.SwapCount)
		}
	}
	if s.AllTimeSwapCount != 1 {
		t.Errorf("AllTimeSwapCount = %d, want 1", s.AllTimeSwapCount)
	}
	if s.LastActivityTimestampMs != 0 {
		t.Errorf("LastActivityTimestampMs = %d, want 0", s.LastActivityTimestampMs)
	}
}

func TestRecordSwapUpdatesLiquidityEstimate(t *testing.T) {
	s := NewState("mintA", 0)
	s.RecordSwap(buySwap(0, 2_000_000_000, "walletA"), 0)
	if want := int64(20_000_000_000); s.EstimatedLiquidity != want {
		t.Errorf("EstimatedLiquidity = %d, want %d", s.EstimatedLiquidity, want)
	}

	// A smaller subsequent swap must not shrink the running estimate.
	s.RecordSwap(buySwap(1, 500_000_000, "walletB"), 1)
	if want := int64(20_000_000_000); s.EstimatedLiquidity != want {
		t.Errorf("EstimatedLiquidity shrank on smaller swap: got %d, want %d", s.EstimatedLiquidity, want)
	}
}

func TestPhase1StatsSetOnce(t *testing.T) {
	s := NewState("mintA", 0)
	if _, ok := s.Phase1Stats(); ok {
		t.Fatal("expected no Phase-1 stats on a fresh state")
	}

	s.SetPhase1StatsOnce(models.HotDetectionStats{SwapsInWindow: 10})
	stats, ok := s.Phase1Stats()
	if !ok || stats.SwapsInWindow != 10 {
		t.Fatalf("expected Phase-1 stats to be set, got %+v, ok=%v", stats, ok)
	}

	// Second call must be a no-op per the once-set invariant.
	s.SetPhase1StatsOnce(models.HotDetectionStats{SwapsInWindow: 999})
	stats, _ = s.Phase1Stats()
	if stats.SwapsInWindow != 10 {
		t.Errorf("expected Phase-1 stats to remain unchanged, got SwapsInWindow=%d", stats.SwapsInWindow)
	}
}

func TestUpdateDwellAccumulatesElapsedTime(t *testing.T) {
	s := NewState("mintA", 0)
	s.UpdateDwell(1000, true, false)
	if s.ConsecutiveMsAboveEntry != 0 {
		t.Errorf("expected zero elapsed on first dwell tick, got %d", s.ConsecutiveMsAboveEntry)
	}

	s.UpdateDwell(3000, true, false)
	if s.ConsecutiveMsAboveEntry != 2000 {
		t.Errorf("ConsecutiveMsAboveEntry = %d, want 2000", s.ConsecutiveMsAboveEntry)
	}

	s.UpdateDwell(4000, false, true)
	if s.ConsecutiveMsAboveEntry != 0 {
		t.Errorf("expected dwell to reset once condition goes false, got %d", s.ConsecutiveMsAboveEntry)
	}
	if s.ConsecutiveMsNegativeInflow != 1000 {
		t.Errorf("ConsecutiveMsNegativeInflow = %d, want 1000", s.ConsecutiveMsNegativeInflow)
	}
}

func TestIsInactive(t *testing.T) {
	s := NewState("mintA", 0)
	s.RecordSwap(buySwap(0, 1_000_000_000, "walletA"), 0)

	if s.isInactive(5_000, 10_000) {
		t.Error("expected active token within inactivity timeout")
	}
	if !s.isInactive(20_000, 10_000) {
		t.Error("expected inactive token beyond inactivity timeout")
	}
}
