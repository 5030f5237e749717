package enrich

import (
	"testing"

	"github.com/rawblock/dex-momentum-core/internal/chain"
	"github.com/rawblock/dex-momentum-core/internal/classify"
)

func TestSignerScopedDeltasExcludesBaseMints(t *testing.T) {
	c := classify.New()
	tx := &chain.ParsedTransaction{
		PreTokenBalances: []chain.TokenBalance{
			{Mint: "So11111111111111111111111111111111111111112", Owner: "signer", UiAmount: 10},
			{Mint: "mintXYZ", Owner: "signer", UiAmount: 5},
		},
		PostTokenBalances: []chain.TokenBalance{
			{Mint: "So11111111111111111111111111111111111111112", Owner: "signer", UiAmount: 2},
			{Mint: "mintXYZ", Owner: "signer", UiAmount: 9},
		},
	}

	deltas := signerScopedDeltas(tx, "signer", c)
	if _, ok := deltas["So11111111111111111111111111111111111111112"]; ok {
		t.Error("expected wrapped SOL base mint to be excluded from deltas")
	}
	if got := deltas["mintXYZ"]; got != 4 {
		t.Errorf("mintXYZ delta = %f, want 4", got)
	}
}

func TestSignerScopedDeltasIgnoresOtherOwners(t *testing.T) {
	c := classify.New()
	tx := &chain.ParsedTransaction{
		PreTokenBalances: []chain.TokenBalance{
			{Mint: "mintXYZ", Owner: "someoneElse", UiAmount: 100},
		},
		PostTokenBalances: []chain.TokenBalance{
			{Mint: "mintXYZ", Owner: "someoneElse", UiAmount: 0},
		},
	}

	deltas := signerScopedDeltas(tx, "signer", c)
	if len(deltas) != 0 {
		t.Errorf("expected no deltas for an owner other than signer, got %v", deltas)
	}
}

func TestAllBalanceDeltasIgnoresOwnership(t *testing.T) {
	c := classify.New()
	tx := &chain.ParsedTransaction{
		PreTokenBalances: []chain.TokenBalance{
			{Mint: "mintXYZ", Owner: "poolVault", UiAmount: 100},
		},
		PostTokenBalances: []chain.TokenBalance{
			{Mint: "mintXYZ", Owner: "poolVault", UiAmount: 80},
		},
	}

	deltas := allBalanceDeltas(tx, c)
	if got := deltas["mintXYZ"]; got != -20 {
		t.Errorf("mintXYZ delta = %f, want -20", got)
	}
}

func TestSelectMaxDelta(t *testing.T) {
	deltas := map[string]float64{
		"small": 1.5,
		"big":   -40.0,
	}
	mint, delta, ok := selectMaxDelta(deltas)
	if !ok || mint != "big" || delta != -40.0 {
		t.Errorf("selectMaxDelta = (%q, %f, %v), want (big, -40, true)", mint, delta, ok)
	}
}

func TestSelectMaxDeltaEmpty(t *testing.T) {
	_, _, ok := selectMaxDelta(map[string]float64{})
	if ok {
		t.Error("expected ok=false for an empty delta map")
	}
}

func TestBondingCurveMintFromKeys(t *testing.T) {
	tx := &chain.ParsedTransaction{
		AccountKeys: []string{"walletAbc", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZbpump"},
	}
	if !hasBondingCurveSuffixMint(tx) {
		t.Fatal("expected a pump-suffixed key to be detected")
	}
	if got := bondingCurveMintFromKeys(tx); got != "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZbpump" {
		t.Errorf("bondingCurveMintFromKeys = %q, want the pump-suffixed key", got)
	}
}

func TestBondingCurveMintFromKeysAbsent(t *testing.T) {
	tx := &chain.ParsedTransaction{AccountKeys: []string{"walletAbc", "mintNoSuffix"}}
	if hasBondingCurveSuffixMint(tx) {
		t.Error("expected no pump-suffixed key to be found")
	}
}

func TestNativeDeltaLamports(t *testing.T) {
	tx := &chain.ParsedTransaction{
		Fee:          5000,
		PreBalances:  []uint64{1_000_000_000},
		PostBalances: []uint64{800_000_000},
	}
	got := nativeDeltaLamports(tx, 0)
	want := int64(1_000_000_000 - 800_000_000 - 5000)
	if got != want {
		t.Errorf("nativeDeltaLamports = %d, want %d", got, want)
	}
}

func TestNativeDeltaLamportsOutOfRangeIndex(t *testing.T) {
	tx := &chain.ParsedTransaction{PreBalances: []uint64{100}, PostBalances: []uint64{50}}
	if got := nativeDeltaLamports(tx, 5); got != 0 {
		t.Errorf("expected 0 for out-of-range signer index, got %d", got)
	}
}

func TestDetectVenue(t *testing.T) {
	if v := detectVenue([]string{"other", bondingCurveProgramID}); v.String() != "bonding_curve" {
		t.Errorf("detectVenue bonding curve = %v", v)
	}
	if v := detectVenue([]string{ammProgramID}); v.String() != "amm" {
		t.Errorf("detectVenue amm = %v", v)
	}
	if v := detectVenue([]string{"unrelated"}); v.String() != "unknown" {
		t.Errorf("detectVenue unknown = %v", v)
	}
}

func TestAbsHelpers(t *testing.T) {
	if abs(-3.5) != 3.5 {
		t.Error("abs(-3.5) != 3.5")
	}
	if abs64(-7) != 7 {
		t.Error("abs64(-7) != 7")
	}
}
