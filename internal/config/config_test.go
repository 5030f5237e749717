package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestLoadMissingPathFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with a missing file should not error, got: %v", err)
	}
	if cfg.RPCEndpoint != Default().RPCEndpoint {
		t.Errorf("expected default RPCEndpoint to be used, got %q", cfg.RPCEndpoint)
	}
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
rpcEndpoint: "https://custom.rpc.example"
wsEndpoint: "wss://custom.rpc.example"
apiPort: "9090"
scoring:
  entryThreshold: 3.0
  exitThreshold: 1.0
  confirmationSeconds: 5
  weightSwapCount: 0.25
  weightNetInflow: 0.25
  weightUniqueBuyers: 0.25
  weightPriceChange: 0.25
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RPCEndpoint != "https://custom.rpc.example" {
		t.Errorf("RPCEndpoint = %q, want override", cfg.RPCEndpoint)
	}
	if cfg.Scoring.EntryThreshold != 3.0 {
		t.Errorf("Scoring.EntryThreshold = %f, want 3.0", cfg.Scoring.EntryThreshold)
	}
	// HotCandidate wasn't present in the YAML, so it should keep its defaults.
	if cfg.HotCandidate.HotThreshold != Default().HotCandidate.HotThreshold {
		t.Errorf("expected untouched HotCandidate section to retain defaults")
	}
}

func TestLoadAppliesEnvOverridesAfterYAML(t *testing.T) {
	t.Setenv("SOLANA_RPC_ENDPOINT", "https://env.rpc.example")
	t.Setenv("PORT", "7777")
	t.Setenv("API_AUTH_TOKEN", "secret-token")
	t.Setenv("GIN_MODE", "release")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RPCEndpoint != "https://env.rpc.example" {
		t.Errorf("RPCEndpoint = %q, want env override", cfg.RPCEndpoint)
	}
	if cfg.APIPort != "7777" {
		t.Errorf("APIPort = %q, want 7777", cfg.APIPort)
	}
	if cfg.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q, want secret-token", cfg.AuthToken)
	}
	if !cfg.ReleaseMode {
		t.Error("expected ReleaseMode true when GIN_MODE=release")
	}
}

func TestValidateRejectsEntryThresholdBelowExit(t *testing.T) {
	cfg := Default()
	cfg.Scoring.EntryThreshold = 0.5
	cfg.Scoring.ExitThreshold = 1.0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject entryThreshold <= exitThreshold")
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := Default()
	cfg.Scoring.WeightSwapCount = 0.5
	cfg.Scoring.WeightNetInflow = 0.5
	cfg.Scoring.WeightUniqueBuyers = 0.5
	cfg.Scoring.WeightPriceChange = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject weights that sum well above 1.0")
	}
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := Default()
	cfg.RPCEndpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an empty RPCEndpoint")
	}
}
