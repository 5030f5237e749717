package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rawblock/dex-momentum-core/internal/api"
	"github.com/rawblock/dex-momentum-core/internal/chain"
	"github.com/rawblock/dex-momentum-core/internal/classify"
	"github.com/rawblock/dex-momentum-core/internal/config"
	"github.com/rawblock/dex-momentum-core/internal/decode"
	"github.com/rawblock/dex-momentum-core/internal/enrich"
	"github.com/rawblock/dex-momentum-core/internal/hotcandidate"
	"github.com/rawblock/dex-momentum-core/internal/ingestion"
	"github.com/rawblock/dex-momentum-core/internal/mintverify"
	"github.com/rawblock/dex-momentum-core/internal/risk"
	"github.com/rawblock/dex-momentum-core/internal/scoring"
	"github.com/rawblock/dex-momentum-core/internal/token"
)

// dustFloorLamports filters exact-notional Phase-1 swap records below this
// size before they ever reach the hot-candidate tracker.
const dustFloorLamports = 1000

func main() {
	log.Println("Starting dex-momentum-core...")
	log.Println("Initializing Solana venue log decoder and token universe...")

	cfg, err := config.Load(getEnvOrDefault("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("FATAL: failed to load configuration: %v", err)
	}

	chainClient, err := chain.NewClient(chain.Config{
		RPCEndpoint: cfg.RPCEndpoint,
		WSEndpoint:  cfg.WSEndpoint,
	})
	if err != nil {
		log.Fatalf("FATAL: failed to connect to Solana RPC: %v", err)
	}

	classifier := classify.New(cfg.BondingCurveProgramID, cfg.AMMProgramID)
	decoder := decode.New(dustFloorLamports)

	verifier := mintverify.New(chainClient, classifier, time.Duration(cfg.MintVerifierMinIntervalMs)*time.Millisecond)

	universe := token.NewUniverse(verifier, cfg.InactivityTimeoutMs,
		func(e token.EntryNotification) { log.Printf("[Universe] admitted %s", e.Mint) },
		func(e token.ExitNotification) { log.Printf("[Universe] evicted %s", e.Mint) },
	)

	hot := hotcandidate.New(hotcandidate.Config{
		HotThreshold:     cfg.HotCandidate.HotThreshold,
		HotWindowMs:      cfg.HotCandidate.HotWindowMs,
		BaselineWindowMs: cfg.HotCandidate.BaselineWindowMs,
		CooldownSuccess:  time.Duration(cfg.HotCandidate.CooldownSuccessMinutes) * time.Minute,
		CooldownRejected: time.Duration(cfg.HotCandidate.CooldownRejectedMinutes) * time.Minute,
		CooldownNoise:    time.Duration(cfg.HotCandidate.CooldownNoiseMinutes) * time.Minute,
	})

	enricher := enrich.New(chainClient, classifier, verifier, time.Duration(cfg.EnricherMinIntervalMs)*time.Millisecond)

	scorer := scoring.New(scoring.Config{
		EntryThreshold:      cfg.Scoring.EntryThreshold,
		ExitThreshold:       cfg.Scoring.ExitThreshold,
		ConfirmationSeconds: cfg.Scoring.ConfirmationSeconds,
		Weights: scoring.Weights{
			SwapCount:    cfg.Scoring.WeightSwapCount,
			NetInflow:    cfg.Scoring.WeightNetInflow,
			UniqueBuyers: cfg.Scoring.WeightUniqueBuyers,
			PriceChange:  cfg.Scoring.WeightPriceChange,
		},
	})

	// No sell-simulation quoter is wired yet; the gate degrades to pass/skip
	// per spec.md §4.10 gate 8 until a Jupiter-style quote source lands.
	gates := risk.New(risk.Config{
		MinLiquidityBase:     cfg.Risk.MinLiquidityBase,
		MinUniqueWallets:     cfg.Risk.MinUniqueWallets,
		MaxConcentrationPct:  cfg.Risk.MaxConcentrationPct,
		MaxPositionPctOfPool: cfg.Risk.MaxPositionPctOfPool,
		TradeSizeBase:        cfg.Risk.TradeSizeBase,
		ConfirmationSeconds:  cfg.Scoring.ConfirmationSeconds,
	}, nil)

	pipeline := ingestion.New(ingestion.Config{
		ProgramIDs: []string{cfg.BondingCurveProgramID, cfg.AMMProgramID},
	}, chainClient, decoder, classifier, universe, hot, enricher, scorer, gates)

	wsHub := api.NewHub()
	go wsHub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipeline.Run(ctx); err != nil {
			log.Printf("Warning: ingestion pipeline stopped: %v", err)
		}
	}()

	entries, exits := pipeline.Signals()
	go wsHub.PumpSignals(entries, exits, ctx.Done())

	r := api.SetupRouter(universe, hot, wsHub)

	log.Printf("Engine running on :%s\n", cfg.APIPort)
	if err := r.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
