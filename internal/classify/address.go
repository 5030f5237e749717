// Package classify provides stateless predicates over base58 Solana
// addresses: is this a program/system account, a plausible mint, a
// plausible wallet. These sit on the hot path of every decoded log line and
// every enriched transaction, so after the denylist is built at
// construction time they must not allocate.
//
// Grounded in the teacher's concurrent-safe membership-predicate style
// (internal/heuristics/address_watchlist.go's map-based Contains check),
// generalized from a mutable runtime watchlist to a fixed denylist since
// the classifier's membership sets are load-time constants, not
// investigator-editable state.
package classify

import "github.com/gagliardetto/solana-go"

// knownPrefixes are literal prefixes carried by pool/authority/protocol
// derived addresses on pump.fun-style bonding-curve venues; an address
// beginning with one of these is a program-derived account, not a mint.
var knownPrefixes = []string{
	"PUMP",
	"BONK",
	"ray",
}

// Classifier holds the curated denylist of system/program/aggregator
// addresses. Construct once per process; all lookup methods are safe for
// concurrent use (the underlying maps are read-only after New).
type Classifier struct {
	denylist map[string]struct{}
}

// New builds a Classifier from the base denylist plus any extra addresses
// the caller wants to treat as programs/system accounts (e.g. venue program
// IDs discovered from configuration).
func New(extra ...string) *Classifier {
	c := &Classifier{denylist: make(map[string]struct{}, len(defaultDenylist)+len(extra))}
	for _, a := range defaultDenylist {
		c.denylist[a] = struct{}{}
	}
	for _, a := range extra {
		c.denylist[a] = struct{}{}
	}
	return c
}

// defaultDenylist enumerates the well-known system, program, and
// aggregator addresses that can never be a tradable mint or a trading
// wallet.
var defaultDenylist = []string{
	"11111111111111111111111111111111",            // System Program
	"ComputeBudget111111111111111111111111111111", // Compute Budget Program
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",  // SPL Token Program
	"TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb",  // SPL Token-2022 Program
	"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL", // Associated Token Account Program
	"So11111111111111111111111111111111111111112", // Wrapped SOL mint
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC mint
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT mint
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc",  // Orca Whirlpools program
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",  // Raydium AMM v4 program
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4",   // Jupiter aggregator program
}

const (
	minAddrLen = 43
	maxAddrLen = 44
)

// isProgramOrSystem reports whether a is a known system, program,
// aggregator, stablecoin, or fee account.
func (c *Classifier) isProgramOrSystem(a string) bool {
	_, ok := c.denylist[a]
	return ok
}

// IsProgramOrSystem is the exported form of isProgramOrSystem.
func (c *Classifier) IsProgramOrSystem(a string) bool {
	return c.isProgramOrSystem(a)
}

// isGarbage detects base58 "binary garbage": strings that parse as valid
// pubkeys but are not plausible human-observed mints/wallets because the
// underlying bytes look like degenerate or all-one-value data rather than a
// real cryptographic key.
func isGarbage(a string) bool {
	if len(a) == 0 {
		return true
	}

	runCount := 1
	counts := make(map[rune]int, len(a))
	var prev rune
	maxFreq := 0
	for i, r := range a {
		counts[r]++
		if counts[r] > maxFreq {
			maxFreq = counts[r]
		}
		if i > 0 && r == prev {
			runCount++
			if runCount >= 4 {
				return true
			}
		} else {
			runCount = 1
		}
		prev = r
	}

	if len(counts) < 15 {
		return true
	}

	if float64(maxFreq)/float64(len(a)) > 0.25 {
		return true
	}

	for _, r := range a {
		if !isBase58Char(r) {
			return true
		}
	}

	return false
}

func isBase58Char(r rune) bool {
	switch {
	case r >= '1' && r <= '9':
		return true
	case r >= 'A' && r <= 'H', r >= 'J' && r <= 'N', r >= 'P' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'k', r >= 'm' && r <= 'z':
		return true
	default:
		return false
	}
}

func hasKnownPrefix(a string) bool {
	for _, p := range knownPrefixes {
		if len(a) >= len(p) && a[:len(p)] == p {
			return true
		}
	}
	return false
}

// IsPlausibleMint reports whether a could plausibly be a token mint
// address: correct base58 length, not denylisted, not binary garbage, and
// not prefixed by a known pool/authority/protocol marker.
func (c *Classifier) IsPlausibleMint(a string) bool {
	if len(a) < minAddrLen || len(a) > maxAddrLen {
		return false
	}
	if c.isProgramOrSystem(a) {
		return false
	}
	if isGarbage(a) {
		return false
	}
	if hasKnownPrefix(a) {
		return false
	}
	return true
}

// IsPlausibleWallet reports whether a could plausibly be a trading wallet:
// same length/denylist/garbage bounds as a mint, but additionally must not
// equal the mint it is paired with in the same observation.
func (c *Classifier) IsPlausibleWallet(a, pairedMint string) bool {
	if len(a) < minAddrLen || len(a) > maxAddrLen {
		return false
	}
	if c.isProgramOrSystem(a) {
		return false
	}
	if isGarbage(a) {
		return false
	}
	if a == pairedMint {
		return false
	}
	return true
}

// maxSaneNotionalLamports caps a trade's notional at a level no legitimate
// swap should exceed; anything larger is treated as a decode/parse error
// rather than a real trade.
const maxSaneNotionalLamports = 10_000 * 1_000_000_000 // 10,000 SOL

// ValidateSwap combines the address predicates above with a notional
// sanity check. It returns false if the mint or wallet is implausible, or
// if the notional is outside a fixed sanity cap.
func (c *Classifier) ValidateSwap(mint, wallet string, notionalLamports int64) bool {
	if !c.IsPlausibleMint(mint) {
		return false
	}
	if wallet != "" && wallet != "Unknown" && !c.IsPlausibleWallet(wallet, mint) {
		return false
	}
	if notionalLamports < 0 || notionalLamports > maxSaneNotionalLamports {
		return false
	}
	return true
}

// IsValidPubkeyFormat reports whether a parses as a syntactically valid
// Solana base58 public key, independent of any denylist/plausibility check.
func IsValidPubkeyFormat(a string) bool {
	_, err := solana.PublicKeyFromBase58(a)
	return err == nil
}
