package window

import (
	"testing"

	"github.com/rawblock/dex-momentum-core/pkg/models"
)

func swap(ts int64, dir models.Direction, notional int64, wallet string) models.SwapEvent {
	return models.SwapEvent{
		TimestampMs:   ts,
		Direction:     dir,
		NotionalBase:  notional,
		WalletAddress: wallet,
	}
}

func TestWindowAddAndMetrics(t *testing.T) {
	w := New(10_000) // 10s window

	w.Add(swap(1000, models.Buy, 5_000_000_000, "walletA"), 1000)
	w.Add(swap(2000, models.Sell, 2_000_000_000, "walletB"), 2000)
	w.Add(swap(3000, models.Buy, 3_000_000_000, "walletA"), 3000)

	m := w.Metrics(3000)
	if m.SwapCount != 3 {
		t.Errorf("SwapCount = %d, want 3", m.SwapCount)
	}
	if m.BuyCount != 2 || m.SellCount != 1 {
		t.Errorf("BuyCount/SellCount = %d/%d, want 2/1", m.BuyCount, m.SellCount)
	}
	if m.BuyNotional != 8_000_000_000 {
		t.Errorf("BuyNotional = %d, want 8000000000", m.BuyNotional)
	}
	if m.SellNotional != 2_000_000_000 {
		t.Errorf("SellNotional = %d, want 2000000000", m.SellNotional)
	}
	if m.NetInflow != 6_000_000_000 {
		t.Errorf("NetInflow = %d, want 6000000000", m.NetInflow)
	}
	if m.UniqueBuyers != 1 {
		t.Errorf("UniqueBuyers = %d, want 1 (walletA appears twice)", m.UniqueBuyers)
	}
	if m.UniqueSellers != 1 {
		t.Errorf("UniqueSellers = %d, want 1", m.UniqueSellers)
	}
}

func TestWindowExpiryUsesSuppliedNow(t *testing.T) {
	w := New(5_000) // 5s window

	w.Add(swap(0, models.Buy, 1_000_000_000, "walletA"), 0)
	if got := w.Metrics(1_000).SwapCount; got != 1 {
		t.Fatalf("expected swap still live at now=1000, got SwapCount=%d", got)
	}

	// Advance past the window without touching any real clock.
	m := w.Metrics(6_000)
	if m.SwapCount != 0 {
		t.Errorf("expected swap to have expired by now=6000, got SwapCount=%d", m.SwapCount)
	}
	if m.BuyNotional != 0 {
		t.Errorf("expected BuyNotional to unwind to 0 on expiry, got %d", m.BuyNotional)
	}
}

func TestWindowTopBuyerConcentration(t *testing.T) {
	w := New(10_000)
	w.Add(swap(0, models.Buy, 8_000_000_000, "whale"), 0)
	w.Add(swap(1, models.Buy, 2_000_000_000, "minnow"), 1)

	m := w.Metrics(1)
	want := 80.0
	if got := m.TopBuyerConcentration; got < want-0.01 || got > want+0.01 {
		t.Errorf("TopBuyerConcentration = %.2f, want %.2f", got, want)
	}
}

func TestWindowUnknownWalletExcludedFromUniqueSets(t *testing.T) {
	w := New(10_000)
	w.Add(swap(0, models.Buy, 1_000_000_000, models.UnknownWallet), 0)
	w.Add(swap(1, models.Buy, 1_000_000_000, ""), 1)

	m := w.Metrics(1)
	if m.UniqueBuyers != 0 {
		t.Errorf("expected Unknown/empty wallets excluded from unique set, got UniqueBuyers=%d", m.UniqueBuyers)
	}
	if m.SwapCount != 2 {
		t.Errorf("expected both swaps still counted, got SwapCount=%d", m.SwapCount)
	}
}

func TestWindowPriceChangePercent(t *testing.T) {
	w := New(10_000)
	w.Add(swap(0, models.Buy, 1_000_000_000, "a"), 0)
	w.Add(swap(1, models.Buy, 1_500_000_000, "b"), 1)

	m := w.Metrics(1)
	want := 50.0
	if got := m.PriceChangePercent; got < want-0.01 || got > want+0.01 {
		t.Errorf("PriceChangePercent = %.2f, want %.2f", got, want)
	}
}

func TestWindowCompaction(t *testing.T) {
	w := New(1) // 1ms window: everything expires almost immediately

	for i := int64(0); i < compactThreshold+50; i++ {
		w.Add(swap(i, models.Buy, 1, "w"), i)
	}

	// Force expiry well past the compaction threshold's worth of dead head
	// entries and confirm the aggregate still reports correctly afterward.
	m := w.Metrics(compactThreshold + 1000)
	if m.SwapCount != 0 {
		t.Errorf("expected all entries expired after compaction, got SwapCount=%d", m.SwapCount)
	}

	w.Add(swap(compactThreshold+1000, models.Buy, 42, "w"), compactThreshold+1000)
	m = w.Metrics(compactThreshold + 1000)
	if m.SwapCount != 1 || m.BuyNotional != 42 {
		t.Errorf("expected window usable after compaction, got SwapCount=%d BuyNotional=%d", m.SwapCount, m.BuyNotional)
	}
}
