// Package config loads the engine's tunables from a YAML file (spec.md §6's
// enumerated configuration surface), with environment variables overriding
// individual fields for deployment-time secrets and per-environment
// endpoints.
//
// Grounded in ChoSanghyuk-blackholedex/configs/config.go's
// os.ReadFile+yaml.Unmarshal loader, blended with the teacher's
// requireEnv/getEnvOrDefault discipline from cmd/engine/main.go for the
// handful of fields (RPC credentials, auth token, port) that must be
// allowed to come from the environment without editing the YAML file.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	RPCEndpoint string `yaml:"rpcEndpoint"`
	WSEndpoint  string `yaml:"wsEndpoint"`

	BondingCurveProgramID string `yaml:"bondingCurveProgramId"`
	AMMProgramID          string `yaml:"ammProgramId"`

	InactivityTimeoutMs int64 `yaml:"inactivityTimeoutMs"`

	MintVerifierMinIntervalMs int64 `yaml:"mintVerifierMinIntervalMs"`
	EnricherMinIntervalMs     int64 `yaml:"enricherMinIntervalMs"`

	HotCandidate HotCandidateConfig `yaml:"hotCandidate"`
	Scoring      ScoringConfig      `yaml:"scoring"`
	Risk         RiskConfig         `yaml:"risk"`

	APIPort      string `yaml:"apiPort"`
	AuthToken    string `yaml:"-"` // always env-sourced, never written to the YAML file
	ReleaseMode  bool   `yaml:"-"`
}

// HotCandidateConfig mirrors internal/hotcandidate.Config's YAML-facing
// fields.
type HotCandidateConfig struct {
	HotThreshold     int   `yaml:"hotThreshold"`
	HotWindowMs      int64 `yaml:"hotWindowMs"`
	BaselineWindowMs int64 `yaml:"baselineWindowMs"`

	CooldownSuccessMinutes  int `yaml:"cooldownSuccessMinutes"`
	CooldownRejectedMinutes int `yaml:"cooldownRejectedMinutes"`
	CooldownNoiseMinutes    int `yaml:"cooldownNoiseMinutes"`
}

// ScoringConfig mirrors internal/scoring.Config's YAML-facing fields.
type ScoringConfig struct {
	EntryThreshold      float64 `yaml:"entryThreshold"`
	ExitThreshold       float64 `yaml:"exitThreshold"`
	ConfirmationSeconds float64 `yaml:"confirmationSeconds"`

	WeightSwapCount    float64 `yaml:"weightSwapCount"`
	WeightNetInflow    float64 `yaml:"weightNetInflow"`
	WeightUniqueBuyers float64 `yaml:"weightUniqueBuyers"`
	WeightPriceChange  float64 `yaml:"weightPriceChange"`
}

// RiskConfig mirrors internal/risk.Config's YAML-facing fields.
type RiskConfig struct {
	MinLiquidityBase     int64   `yaml:"minLiquidityBase"`
	MinUniqueWallets     int     `yaml:"minUniqueWallets"`
	MaxConcentrationPct  float64 `yaml:"maxConcentrationPct"`
	MaxPositionPctOfPool float64 `yaml:"maxPositionPctOfPool"`
	TradeSizeBase        int64   `yaml:"tradeSizeBase"`
}

// Default returns spec.md §6/§8's stated defaults, used to seed
// config.example.yaml and as a base before YAML/env overrides apply.
func Default() Config {
	return Config{
		RPCEndpoint:           "https://api.mainnet-beta.solana.com",
		WSEndpoint:            "wss://api.mainnet-beta.solana.com",
		BondingCurveProgramID: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		AMMProgramID:          "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
		InactivityTimeoutMs:   10 * 60 * 1000,
		MintVerifierMinIntervalMs: 50,
		EnricherMinIntervalMs:     125,
		HotCandidate: HotCandidateConfig{
			HotThreshold:            5,
			HotWindowMs:             30_000,
			BaselineWindowMs:        300_000,
			CooldownSuccessMinutes:  3,
			CooldownRejectedMinutes: 10,
			CooldownNoiseMinutes:    15,
		},
		Scoring: ScoringConfig{
			EntryThreshold:      2.0,
			ExitThreshold:       0.5,
			ConfirmationSeconds: 10,
			WeightSwapCount:     0.20,
			WeightNetInflow:     0.35,
			WeightUniqueBuyers:  0.25,
			WeightPriceChange:   0.20,
		},
		Risk: RiskConfig{
			MinLiquidityBase:     10 * 1_000_000_000,
			MinUniqueWallets:     4,
			MaxConcentrationPct:  50.0,
			MaxPositionPctOfPool: 5.0,
			TradeSizeBase:        1 * 1_000_000_000,
		},
		APIPort: "8080",
	}
}

// Load reads path (if non-empty and present) over the defaults, then
// applies environment-variable overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLANA_RPC_ENDPOINT"); v != "" {
		cfg.RPCEndpoint = v
	}
	if v := os.Getenv("SOLANA_WS_ENDPOINT"); v != "" {
		cfg.WSEndpoint = v
	}
	cfg.APIPort = getEnvOrDefault("PORT", cfg.APIPort)
	cfg.AuthToken = os.Getenv("API_AUTH_TOKEN")
	cfg.ReleaseMode = os.Getenv("GIN_MODE") == "release"
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Validate enforces the two cross-field invariants spec.md §6/§9 call out:
// entry threshold must exceed exit threshold, and the four scoring weights
// must sum to 1.0 within a small tolerance.
func (c Config) Validate() error {
	if c.Scoring.EntryThreshold <= c.Scoring.ExitThreshold {
		return fmt.Errorf("config: scoring.entryThreshold (%.4f) must exceed scoring.exitThreshold (%.4f)", c.Scoring.EntryThreshold, c.Scoring.ExitThreshold)
	}

	sum := c.Scoring.WeightSwapCount + c.Scoring.WeightNetInflow + c.Scoring.WeightUniqueBuyers + c.Scoring.WeightPriceChange
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("config: scoring weights must sum to 1.0 (+/-0.01), got %.4f", sum)
	}

	if c.RPCEndpoint == "" || c.WSEndpoint == "" {
		return fmt.Errorf("config: rpcEndpoint and wsEndpoint are required")
	}

	return nil
}
