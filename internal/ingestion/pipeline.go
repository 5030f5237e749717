// Package ingestion wires the log subscription, the binary decoder, the
// hot-candidate tracker, the enricher, the token universe, the scorer, and
// the risk gates into the single reaction loop spec.md §4.7 describes.
//
// Grounded in the teacher's cmd/engine composition + internal/scanner's
// block-by-block driver loop (internal/scanner/block_scanner.go pulls
// blocks, dispatches to heuristics, advances a cursor); the same shape here
// pulls log notifications, dispatches to decode/enrich, and advances the
// token universe's clock.
package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/dex-momentum-core/internal/chain"
	"github.com/rawblock/dex-momentum-core/internal/classify"
	"github.com/rawblock/dex-momentum-core/internal/decode"
	"github.com/rawblock/dex-momentum-core/internal/enrich"
	"github.com/rawblock/dex-momentum-core/internal/hotcandidate"
	"github.com/rawblock/dex-momentum-core/internal/risk"
	"github.com/rawblock/dex-momentum-core/internal/scoring"
	"github.com/rawblock/dex-momentum-core/internal/token"
	"github.com/rawblock/dex-momentum-core/pkg/models"
)

const (
	dedupCap     = 10_000
	recentSigCap = 5
	tickInterval = 1 * time.Second
)

// sigDedup is a bounded set of recently-seen signatures. Insertion order is
// tracked so that once the set fills, the oldest half is dropped in one
// pass rather than evicting one entry per insert — cheaper than an LRU for
// a set that only ever needs "have I seen this recently", not true
// recency ordering.
type sigDedup struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
}

func newSigDedup() *sigDedup {
	return &sigDedup{seen: make(map[string]struct{}, dedupCap)}
}

// CheckAndAdd returns true if signature was already seen, false if it is
// new (and now recorded).
func (d *sigDedup) CheckAndAdd(signature string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[signature]; ok {
		return true
	}
	d.seen[signature] = struct{}{}
	d.order = append(d.order, signature)

	if len(d.order) > dedupCap {
		half := len(d.order) / 2
		for _, s := range d.order[:half] {
			delete(d.seen, s)
		}
		d.order = append([]string(nil), d.order[half:]...)
	}
	return false
}

// recentSigCache remembers, per mint, the last few signatures that produced
// a provisional BondingCurve trade observation — the pool Phase-2 batching
// draws from when a candidate goes hot.
type recentSigCache struct {
	mu   sync.Mutex
	sigs map[string][]string
}

func newRecentSigCache() *recentSigCache {
	return &recentSigCache{sigs: make(map[string][]string)}
}

func (c *recentSigCache) add(mint, signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := append(c.sigs[mint], signature)
	if len(list) > recentSigCap {
		list = list[len(list)-recentSigCap:]
	}
	c.sigs[mint] = list
}

func (c *recentSigCache) get(mint string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sigs[mint]))
	copy(out, c.sigs[mint])
	return out
}

// Config carries the venue program IDs and lifecycle tunables the pipeline
// needs beyond its component dependencies' own configs.
type Config struct {
	ProgramIDs []string
}

// Pipeline is the top-level reaction loop: one log subscription feeding
// Phase-1 decode, selective Phase-2 enrichment, and a periodic scoring/risk
// tick across the live token universe.
type Pipeline struct {
	cfg Config

	chainClient *chain.Client
	decoder     *decode.Decoder
	classifier  *classify.Classifier
	universe    *token.Universe
	hot         *hotcandidate.Tracker
	enricher    *enrich.Enricher
	scorer      *scoring.Scorer
	gates       *risk.Gates

	dedup      *sigDedup
	recentSigs *recentSigCache

	mu            sync.Mutex
	activeEntries map[string]bool

	entries chan models.EntrySignal
	exits   chan models.ExitSignal
}

// New constructs a Pipeline from its already-built components.
func New(cfg Config, chainClient *chain.Client, decoder *decode.Decoder, classifier *classify.Classifier, universe *token.Universe, hot *hotcandidate.Tracker, enricher *enrich.Enricher, scorer *scoring.Scorer, gates *risk.Gates) *Pipeline {
	p := &Pipeline{
		cfg:           cfg,
		chainClient:   chainClient,
		decoder:       decoder,
		classifier:    classifier,
		universe:      universe,
		hot:           hot,
		enricher:      enricher,
		scorer:        scorer,
		gates:         gates,
		dedup:         newSigDedup(),
		recentSigs:    newRecentSigCache(),
		activeEntries: make(map[string]bool),
		entries:       make(chan models.EntrySignal, 256),
		exits:         make(chan models.ExitSignal, 256),
	}
	hot.OnHot(p.onHotCandidate)
	return p
}

// Signals exposes the outbound EntrySignal/ExitSignal streams for the API
// layer to forward downstream.
func (p *Pipeline) Signals() (<-chan models.EntrySignal, <-chan models.ExitSignal) {
	return p.entries, p.exits
}

// Run subscribes to venue logs and drives the reaction loop until ctx is
// cancelled or the subscription's reconnect budget is exhausted.
func (p *Pipeline) Run(ctx context.Context) error {
	notifications, errc := p.chainClient.SubscribeLogs(ctx, p.cfg.ProgramIDs)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errc:
			if ok && err != nil {
				return err
			}

		case notif, ok := <-notifications:
			if !ok {
				return nil
			}
			p.handleNotification(ctx, notif)

		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Pipeline) handleNotification(ctx context.Context, notif chain.LogNotification) {
	if notif.Failed {
		return
	}
	if p.dedup.CheckAndAdd(notif.Signature) {
		return
	}

	records := p.decoder.DecodeAll(notif.Logs)
	nowMs := time.Now().UnixMilli()

	for _, rec := range records {
		if rec.NeedsEnrichment {
			// AMM Buy/Sell events carry no mint or user in the payload, so
			// there is no cheap per-token key to group them under before
			// enrichment. Rather than block the Phase-1 hot-candidate
			// filter on RPC, every such event is enriched directly; once
			// resolved, its mint feeds the tracker like any other
			// observation.
			go p.enrichAndIngest(ctx, notif.Signature, nowMs)
			continue
		}
		p.handleBondingCurveRecord(ctx, notif, rec, nowMs)
	}
}

func (p *Pipeline) handleBondingCurveRecord(ctx context.Context, notif chain.LogNotification, rec decode.DecodedRecord, nowMs int64) {
	wallet := rec.User
	if wallet == "" {
		wallet = models.UnknownWallet
	}
	notional := int64(rec.SolAmount)

	if !p.classifier.ValidateSwap(rec.Mint, wallet, notional) {
		return
	}

	direction := models.Sell
	if rec.IsBuy {
		direction = models.Buy
	}

	event := models.SwapEvent{
		Signature:     notif.Signature,
		Slot:          notif.Slot,
		TimestampMs:   nowMs,
		TokenMint:     rec.Mint,
		Direction:     direction,
		NotionalBase:  notional,
		WalletAddress: wallet,
		Venue:         models.VenueBondingCurve,
	}

	p.recentSigs.add(rec.Mint, notif.Signature)
	p.hot.RecordSwap(rec.Mint, notif.Signature, rec.IsBuy, wallet, nowMs)
	p.ingestSwap(ctx, event, nowMs)
}

func (p *Pipeline) enrichAndIngest(ctx context.Context, signature string, nowMs int64) {
	event, reason := p.enricher.Enrich(ctx, signature, nowMs)
	if event == nil {
		if reason != enrich.ReasonNone {
			log.Printf("[Ingestion] enrichment skipped %s: %s", signature, reason)
		}
		return
	}
	p.recentSigs.add(event.TokenMint, signature)
	p.hot.RecordSwap(event.TokenMint, signature, event.Direction == models.Buy, event.WalletAddress, nowMs)
	p.ingestSwap(ctx, *event, nowMs)
}

func (p *Pipeline) ingestSwap(ctx context.Context, event models.SwapEvent, nowMs int64) {
	st, ok := p.universe.Admit(ctx, event.TokenMint, nowMs)
	if !ok {
		return
	}
	st.RecordSwap(event, nowMs)
}

// onHotCandidate runs the Phase-2 escalation for a candidate mint: pull its
// recent signatures, enrich each, and resolve the majority mint they agree
// on (log-derived mints can occasionally be malformed or ambiguous across a
// short decode window).
func (p *Pipeline) onHotCandidate(mint string, stats hotcandidate.HotDetectionStats) {
	p.hot.MarkPhase2Started(mint)
	go p.runPhase2Batch(mint, stats)
}

func (p *Pipeline) runPhase2Batch(mint string, stats hotcandidate.HotDetectionStats) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sigs := p.recentSigs.get(mint)
	nowMs := time.Now().UnixMilli()

	var events []models.SwapEvent
	mintVotes := make(map[string]int)

	for _, sig := range sigs {
		event, reason := p.enricher.Enrich(ctx, sig, nowMs)
		if event == nil {
			_ = reason
			continue
		}
		events = append(events, *event)
		mintVotes[event.TokenMint]++
	}

	outcome := hotcandidate.OutcomeNoise
	if len(events) == 0 {
		p.hot.MarkPhase2Complete(mint, outcome, nowMs)
		return
	}

	resolvedMint := majorityMint(mintVotes, mint)

	st, admitted := p.universe.Admit(ctx, resolvedMint, nowMs)
	if !admitted {
		p.hot.MarkPhase2Complete(mint, hotcandidate.OutcomeRejected, nowMs)
		return
	}

	st.SetPhase1StatsOnce(models.HotDetectionStats{
		SwapsInWindow:       stats.SwapsInWindow,
		Buys:                stats.Buys,
		Sells:               stats.Sells,
		BuyRatio:            stats.BuyRatio,
		UniqueWallets:       stats.UniqueWallets,
		WindowActualMs:      stats.WindowActualMs,
		BaselineSwapsPerMin: stats.BaselineSwapsPerMin,
		IsNewMomentum:       stats.IsNewMomentum,
	})

	matched := 0
	for _, e := range events {
		if e.TokenMint != resolvedMint {
			continue
		}
		st.RecordSwap(e, nowMs)
		matched++
	}

	if matched > 0 {
		outcome = hotcandidate.OutcomeSuccess
	}
	p.hot.MarkPhase2Complete(mint, outcome, nowMs)
}

func majorityMint(votes map[string]int, fallback string) string {
	best := fallback
	bestCount := 0
	for mint, count := range votes {
		if count > bestCount {
			best = mint
			bestCount = count
		}
	}
	return best
}

// tick advances the universe's windows and runs one scoring/risk pass over
// every live token, emitting entry/exit signals as the scorer and gates
// decide.
func (p *Pipeline) tick(ctx context.Context) {
	nowMs := time.Now().UnixMilli()

	p.universe.Tick(nowMs)
	p.hot.Cleanup(nowMs)

	for _, st := range p.universe.Snapshot() {
		score, exitReason := p.scorer.Tick(st, nowMs)
		p.reactToScore(ctx, st, score, exitReason, nowMs)
	}
}

func (p *Pipeline) reactToScore(ctx context.Context, st *token.State, score models.MomentumScore, exitReason models.ExitReason, nowMs int64) {
	mint := st.Mint

	p.mu.Lock()
	open := p.activeEntries[mint]
	p.mu.Unlock()

	if !open {
		if !p.scorer.IsEntryReady(score) {
			return
		}
		result := p.gates.Evaluate(ctx, st, score, nowMs)
		if !result.Approved {
			return
		}
		p.mu.Lock()
		p.activeEntries[mint] = true
		p.mu.Unlock()

		signal := models.EntrySignal{
			ID:             uuid.NewString(),
			TokenMint:      mint,
			Score:          score,
			RiskAssessment: result,
			TimestampMs:    nowMs,
		}
		select {
		case p.entries <- signal:
		default:
			log.Printf("[Ingestion] entry signal channel full, dropping signal for %s", mint)
		}
		return
	}

	if exitReason == models.ExitReasonNone {
		return
	}

	p.mu.Lock()
	delete(p.activeEntries, mint)
	p.mu.Unlock()

	signal := models.ExitSignal{
		ID:          uuid.NewString(),
		TokenMint:   mint,
		Reason:      exitReason,
		Score:       score.TotalScore,
		TimestampMs: nowMs,
	}
	select {
	case p.exits <- signal:
	default:
		log.Printf("[Ingestion] exit signal channel full, dropping signal for %s", mint)
	}
}
