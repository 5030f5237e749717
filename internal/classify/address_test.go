package classify

import "testing"

const (
	mintA   = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	walletA = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

func TestIsProgramOrSystem(t *testing.T) {
	c := New()
	if !c.IsProgramOrSystem("11111111111111111111111111111111") {
		t.Error("expected System Program to be denylisted")
	}
	if !c.IsProgramOrSystem("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA") {
		t.Error("expected SPL Token Program to be denylisted")
	}
	if c.IsProgramOrSystem(mintA) {
		t.Error("expected a plausible mint not to be denylisted")
	}
}

func TestNewExtraDenylist(t *testing.T) {
	c := New(mintA)
	if !c.IsProgramOrSystem(mintA) {
		t.Error("expected extra address to be denylisted")
	}
	if c.IsPlausibleMint(mintA) {
		t.Error("denylisted address must not be a plausible mint")
	}
}

func TestIsPlausibleMint(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"valid mint", mintA, true},
		{"too short", "abc", false},
		{"system program", "11111111111111111111111111111111", false},
		{"known stablecoin", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", false},
		{"garbage run", "11111111111111111111111111111111111111AAAA", false},
		{"bonk-prefixed pool marker", "BONKaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsPlausibleMint(tt.addr); got != tt.want {
				t.Errorf("IsPlausibleMint(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestIsPlausibleWallet(t *testing.T) {
	c := New()

	if !c.IsPlausibleWallet(walletA, mintA) {
		t.Error("expected distinct plausible wallet to pass")
	}
	if c.IsPlausibleWallet(mintA, mintA) {
		t.Error("wallet must not equal its paired mint")
	}
	if c.IsPlausibleWallet("11111111111111111111111111111111", mintA) {
		t.Error("system program must not be a plausible wallet")
	}
}

func TestValidateSwap(t *testing.T) {
	c := New()

	if !c.ValidateSwap(mintA, walletA, 1_000_000_000) {
		t.Error("expected a sane swap to validate")
	}
	if c.ValidateSwap(mintA, walletA, -1) {
		t.Error("negative notional must fail")
	}
	if c.ValidateSwap(mintA, walletA, 20_000*1_000_000_000) {
		t.Error("notional above the sane cap must fail")
	}
	if !c.ValidateSwap(mintA, "Unknown", 1_000_000_000) {
		t.Error("an \"Unknown\" wallet sentinel must be accepted")
	}
	if !c.ValidateSwap(mintA, "", 1_000_000_000) {
		t.Error("an empty wallet must be accepted (unresolved observation)")
	}
	if c.ValidateSwap("11111111111111111111111111111111", walletA, 1_000_000_000) {
		t.Error("a denylisted mint must fail")
	}
}

func TestIsValidPubkeyFormat(t *testing.T) {
	if !IsValidPubkeyFormat(mintA) {
		t.Errorf("expected %q to parse as a valid pubkey", mintA)
	}
	if IsValidPubkeyFormat("not-a-pubkey") {
		t.Error("expected an obviously invalid string to fail")
	}
}
