// Package window implements the SlidingWindow: a deque of swap events for a
// fixed duration, paired with incrementally maintained aggregates so that
// metrics() never has to rescan the deque.
//
// Expiry-basis decision (spec.md §9 open question): this implementation
// indexes purely by the `now` value the caller supplies to Add/Tick/Metrics
// — never by calling time.Now() internally. Production callers (the
// ingestion pipeline) always pass time.Now().UnixMilli(), so in practice
// expiry tracks wall clock; tests can drive a deterministic clock. This
// sidesteps the source's Date.now()-vs-event.timestamp inconsistency
// entirely: there is exactly one clock, supplied once per call, and every
// expiry check (both the opportunistic one in Add and the forced one in
// Tick) uses it consistently. See DESIGN.md for the full rationale.
package window

import (
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

type entry struct {
	timestampMs int64
	event       models.SwapEvent
}

// Window is a fixed-duration sliding aggregation of swap events. Not safe
// for concurrent use without an external lock — TokenState serializes
// access per token.
type Window struct {
	sizeMs int64

	deque []entry
	head  int // index of the oldest live entry in deque

	buyCount, sellCount     int
	buyNotional, sellNotional int64

	buyerNotional  map[string]int64
	sellerNotional map[string]int64

	firstNotional int64
	lastNotional  int64
	firstTimestampMs int64
	lastTimestampMs  int64
}

// New constructs an empty Window for the given duration.
func New(sizeMs int64) *Window {
	return &Window{
		sizeMs:         sizeMs,
		buyerNotional:  make(map[string]int64),
		sellerNotional: make(map[string]int64),
	}
}

// compactThreshold bounds how much dead prefix we tolerate in deque before
// reslicing the backing array, so long-lived low-traffic windows don't
// retain unbounded memory.
const compactThreshold = 256

// Add appends event at wall-clock now, expiring stale entries first.
// O(1) amortized.
func (w *Window) Add(event models.SwapEvent, now int64) {
	w.expire(now)

	w.deque = append(w.deque, entry{timestampMs: event.TimestampMs, event: event})

	notional := event.NotionalBase
	switch event.Direction {
	case models.Buy:
		w.buyCount++
		w.buyNotional += notional
		if event.IsWalletKnown() {
			w.buyerNotional[event.WalletAddress] += notional
		}
	case models.Sell:
		w.sellCount++
		w.sellNotional += notional
		if event.IsWalletKnown() {
			w.sellerNotional[event.WalletAddress] += notional
		}
	}

	if w.firstTimestampMs == 0 || len(w.deque)-w.head == 1 {
		w.firstTimestampMs = event.TimestampMs
		w.firstNotional = notional
	}
	w.lastTimestampMs = event.TimestampMs
	w.lastNotional = notional
}

// Tick forces expiration without adding a new event.
func (w *Window) Tick(now int64) {
	w.expire(now)
}

// expire pops entries older than now-sizeMs, decrementing aggregates as it
// goes. When a wallet's running notional reaches zero its map entry is
// removed so unique-set membership reflects presence-in-window.
func (w *Window) expire(now int64) {
	cutoff := now - w.sizeMs

	for w.head < len(w.deque) && w.deque[w.head].timestampMs < cutoff {
		e := w.deque[w.head].event
		notional := e.NotionalBase

		switch e.Direction {
		case models.Buy:
			w.buyCount--
			w.buyNotional -= notional
			if e.IsWalletKnown() {
				w.buyerNotional[e.WalletAddress] -= notional
				if w.buyerNotional[e.WalletAddress] <= 0 {
					delete(w.buyerNotional, e.WalletAddress)
				}
			}
		case models.Sell:
			w.sellCount--
			w.sellNotional -= notional
			if e.IsWalletKnown() {
				w.sellerNotional[e.WalletAddress] -= notional
				if w.sellerNotional[e.WalletAddress] <= 0 {
					delete(w.sellerNotional, e.WalletAddress)
				}
			}
		}

		w.head++
	}

	if w.head >= compactThreshold {
		w.deque = append([]entry(nil), w.deque[w.head:]...)
		w.head = 0
	}

	if w.head >= len(w.deque) {
		w.firstTimestampMs, w.lastTimestampMs = 0, 0
		w.firstNotional, w.lastNotional = 0, 0
	} else {
		w.firstTimestampMs = w.deque[w.head].timestampMs
		w.firstNotional = w.deque[w.head].event.NotionalBase
	}
}

// Metrics forces expiration and returns a snapshot. Returned set sizes are
// copies; the caller never observes internal map identity.
func (w *Window) Metrics(now int64) models.WindowMetrics {
	w.expire(now)

	m := models.WindowMetrics{
		WindowSizeMs:     w.sizeMs,
		SwapCount:        w.buyCount + w.sellCount,
		BuyCount:         w.buyCount,
		SellCount:        w.sellCount,
		BuyNotional:      w.buyNotional,
		SellNotional:     w.sellNotional,
		NetInflow:        w.buyNotional - w.sellNotional,
		UniqueBuyers:     len(w.buyerNotional),
		UniqueSellers:    len(w.sellerNotional),
		FirstTimestampMs: w.firstTimestampMs,
		LastTimestampMs:  w.lastTimestampMs,
	}

	if w.buyNotional > 0 {
		var maxBuyer int64
		for _, n := range w.buyerNotional {
			if n > maxBuyer {
				maxBuyer = n
			}
		}
		m.TopBuyerConcentration = float64(maxBuyer) / float64(w.buyNotional) * 100.0
	}

	if w.firstNotional != 0 && w.firstNotional != w.lastNotional {
		m.PriceChangePercent = float64(w.lastNotional-w.firstNotional) / float64(w.firstNotional) * 100.0
	}

	if len(w.buyerNotional) > 0 {
		m.BuyerWallets = make([]string, 0, len(w.buyerNotional))
		for addr := range w.buyerNotional {
			m.BuyerWallets = append(m.BuyerWallets, addr)
		}
	}
	if len(w.sellerNotional) > 0 {
		m.SellerWallets = make([]string, 0, len(w.sellerNotional))
		for addr := range w.sellerNotional {
			m.SellerWallets = append(m.SellerWallets, addr)
		}
	}

	return m
}
