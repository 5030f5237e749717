// Package decode implements the BinaryEventDecoder: parsing
// discriminator-prefixed, base64-encoded "Program data:" log lines into
// typed trade records without touching the network.
//
// Grounded in other_examples/...solana-swap-decode...parser.go's
// program-ID/discriminator dispatch style, adapted to the teacher's
// never-panic-on-malformed-input discipline (internal/bitcoin/client.go's
// defensive raw-JSON field normalization is the same instinct applied to a
// different wire format).
package decode

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// RecordKind identifies which on-chain event shape was decoded.
type RecordKind int

const (
	KindUnknown RecordKind = iota
	KindBondingCurveTrade
	KindAMMBuy
	KindAMMSell
)

// DecodedRecord is the decoder's output for one recognized log line.
// Fields not carried by the event payload (AMM events lack User/Mint) are
// zero-valued and NeedsEnrichment is set so the orchestrator knows to
// supply them from transaction context.
type DecodedRecord struct {
	Kind RecordKind

	Mint string
	User string

	SolAmount   uint64
	TokenAmount uint64
	IsBuy       bool

	TimestampSec int64

	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64

	FeeRecipient   string
	FeeBasisPoints uint64

	BaseAmount       uint64
	QuoteAmount      uint64
	PoolBaseReserve  uint64
	PoolQuoteReserve uint64

	NeedsEnrichment bool
}

// anchorDiscriminator reproduces Anchor's standard event-discriminator
// derivation: the first 8 bytes of sha256("event:<EventName>").
func anchorDiscriminator(eventName string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + eventName))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	discTradeEvent = anchorDiscriminator("TradeEvent")
	discBuyEvent   = anchorDiscriminator("BuyEvent")
	discSellEvent  = anchorDiscriminator("SellEvent")
)

const programDataPrefix = "Program data: "

// minTradeEventLen is the byte length required to decode a
// BondingCurve.TradeEvent payload after the 8-byte discriminator:
// mint(32) + solAmount(8) + tokenAmount(8) + isBuy(1) + user(32) +
// timestamp(8) + 4×reserve(8) + feeRecipient(32) + feeBasisPoints(8).
const minTradeEventLen = 8 + 32 + 8 + 8 + 1 + 32 + 8 + 8 + 8 + 8 + 8 + 32 + 8

// minAMMEventLen is the byte length required to decode an AMM Buy/Sell
// payload after the discriminator: timestamp(8) + baseAmount(8) +
// quoteAmount(8) + poolBaseReserve(8) + poolQuoteReserve(8).
const minAMMEventLen = 8 + 8 + 8 + 8 + 8 + 8

// Decoder holds the dust floor applied to records that carry an exact,
// enricher-independent notional.
type Decoder struct {
	minNotionalLamports uint64
}

// New constructs a Decoder with the given dust floor (lamports).
func New(minNotionalLamports uint64) *Decoder {
	return &Decoder{minNotionalLamports: minNotionalLamports}
}

// DecodeAll scans every log line for a "Program data:" payload and decodes
// the ones matching a known discriminator. Malformed or truncated payloads
// are silently skipped — this function never panics on any input.
func (d *Decoder) DecodeAll(logLines []string) []DecodedRecord {
	var out []DecodedRecord
	for _, line := range logLines {
		rec, ok := d.decodeLine(line)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (d *Decoder) decodeLine(line string) (DecodedRecord, bool) {
	idx := strings.Index(line, programDataPrefix)
	if idx < 0 {
		return DecodedRecord{}, false
	}
	payloadB64 := strings.TrimSpace(line[idx+len(programDataPrefix):])
	if payloadB64 == "" {
		return DecodedRecord{}, false
	}

	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil || len(raw) < 8 {
		return DecodedRecord{}, false
	}

	var disc [8]byte
	copy(disc[:], raw[:8])

	switch disc {
	case discTradeEvent:
		return decodeTradeEvent(raw, d.minNotionalLamports)
	case discBuyEvent:
		return decodeAMMEvent(raw, KindAMMBuy)
	case discSellEvent:
		return decodeAMMEvent(raw, KindAMMSell)
	default:
		return DecodedRecord{}, false
	}
}

func decodeTradeEvent(raw []byte, minNotional uint64) (DecodedRecord, bool) {
	if len(raw) < minTradeEventLen {
		return DecodedRecord{}, false
	}
	p := raw[8:]

	mint := solana.PublicKeyFromBytes(p[0:32]).String()
	solAmount := binary.LittleEndian.Uint64(p[32:40])
	tokenAmount := binary.LittleEndian.Uint64(p[40:48])
	isBuy := p[48] != 0
	user := solana.PublicKeyFromBytes(p[49:81]).String()
	ts := int64(binary.LittleEndian.Uint64(p[81:89]))
	virtualSol := binary.LittleEndian.Uint64(p[89:97])
	virtualToken := binary.LittleEndian.Uint64(p[97:105])
	realSol := binary.LittleEndian.Uint64(p[105:113])
	realToken := binary.LittleEndian.Uint64(p[113:121])
	feeRecipient := solana.PublicKeyFromBytes(p[121:153]).String()
	feeBps := binary.LittleEndian.Uint64(p[153:161])

	// This record carries an exact, self-contained notional — apply the
	// dust floor here. AMM records never reach this branch.
	if solAmount < minNotional {
		return DecodedRecord{}, false
	}

	return DecodedRecord{
		Kind:                 KindBondingCurveTrade,
		Mint:                 mint,
		User:                 user,
		SolAmount:            solAmount,
		TokenAmount:          tokenAmount,
		IsBuy:                isBuy,
		TimestampSec:         ts,
		VirtualSolReserves:   virtualSol,
		VirtualTokenReserves: virtualToken,
		RealSolReserves:      realSol,
		RealTokenReserves:    realToken,
		FeeRecipient:         feeRecipient,
		FeeBasisPoints:       feeBps,
		NeedsEnrichment:      false,
	}, true
}

func decodeAMMEvent(raw []byte, kind RecordKind) (DecodedRecord, bool) {
	if len(raw) < minAMMEventLen {
		return DecodedRecord{}, false
	}
	p := raw[8:]

	ts := int64(binary.LittleEndian.Uint64(p[0:8]))
	baseAmount := binary.LittleEndian.Uint64(p[8:16])
	quoteAmount := binary.LittleEndian.Uint64(p[16:24])
	poolBase := binary.LittleEndian.Uint64(p[24:32])
	poolQuote := binary.LittleEndian.Uint64(p[32:40])

	// User and mint are not in the payload; enrichment supplies them.
	// Never dust-filtered here — the swap count itself is the signal
	// until the enricher resolves a real notional.
	return DecodedRecord{
		Kind:             kind,
		IsBuy:            kind == KindAMMBuy,
		TimestampSec:     ts,
		BaseAmount:       baseAmount,
		QuoteAmount:      quoteAmount,
		PoolBaseReserve:  poolBase,
		PoolQuoteReserve: poolQuote,
		NeedsEnrichment:  true,
	}, true
}
