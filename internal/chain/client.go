// Package chain wraps the Solana JSON-RPC and logs-subscription transport
// used by the enricher, the mint verifier, and the ingestion pipeline.
//
// Grounded in internal/bitcoin/client.go's role in the teacher: a single
// Client type holding the RPC handle plus configuration, with
// narrowly-scoped wrapper methods around the SDK (there, btcsuite/btcd's
// rpcclient; here, gagliardetto/solana-go's rpc.Client and ws.Client). The
// teacher's fallback-chain pattern (EstimateSmartFee's
// CONSERVATIVE→ECONOMICAL→mempool-floor chain) grounds LogsSubscribeWithReconnect's
// exponential-backoff reconnect loop below — same "degrade gracefully
// through a fixed chain of attempts" shape, applied to transport
// reconnection instead of fee estimation.
package chain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// Config carries the two upstream endpoints spec.md §6 enumerates.
type Config struct {
	RPCEndpoint string
	WSEndpoint  string
}

// Client bundles the RPC client used for transaction/account fetches. The
// WebSocket client is established per-subscription by Subscribe, since a
// reconnect replaces the whole socket rather than just re-arming a single
// request.
type Client struct {
	RPC *rpc.Client
	cfg Config
}

// NewClient constructs a Client and verifies the RPC endpoint is reachable.
func NewClient(cfg Config) (*Client, error) {
	rpcClient := rpc.New(cfg.RPCEndpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rpcClient.GetHealth(ctx); err != nil {
		return nil, fmt.Errorf("chain: RPC endpoint unreachable: %w", err)
	}

	log.Println("[Chain] Connected to Solana RPC endpoint")
	return &Client{RPC: rpcClient, cfg: cfg}, nil
}

// TokenBalance mirrors one entry of a parsed transaction's
// pre/postTokenBalances array.
type TokenBalance struct {
	AccountIndex uint16
	Mint         string
	Owner        string
	UiAmount     float64
	Decimals     uint8
}

// ParsedTransaction is the subset of a fetched transaction the enricher
// needs: account keys with signer flags, native balances, token balances,
// fee, slot, block time, and whether the transaction succeeded.
type ParsedTransaction struct {
	Signature        string
	Slot             uint64
	BlockTimeUnixSec int64
	Failed           bool
	Fee              uint64
	AccountKeys      []string
	SignerFlags      []bool
	PreBalances      []uint64 // lamports, indexed like AccountKeys
	PostBalances     []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// GetParsedTransaction fetches and normalizes a transaction by signature.
// It returns (nil, nil) — never an error — when the transaction is simply
// absent or still processing, since callers (the enricher) treat "no
// transaction yet" as a benign skip rather than a fault.
func (c *Client) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid signature %q: %w", signature, err)
	}

	maxVersion := uint64(0)
	result, err := c.RPC.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
		Commitment:                    rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, nil
	}
	if result == nil || result.Meta == nil {
		return nil, nil
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil || tx == nil {
		return nil, nil
	}

	keys := tx.Message.AccountKeys
	accountKeys := make([]string, len(keys))
	signerFlags := make([]bool, len(keys))
	for i, k := range keys {
		accountKeys[i] = k.String()
		signerFlags[i] = i < int(tx.Message.Header.NumRequiredSignatures)
	}

	pre := make([]TokenBalance, 0, len(result.Meta.PreTokenBalances))
	for _, b := range result.Meta.PreTokenBalances {
		pre = append(pre, toTokenBalance(b))
	}
	post := make([]TokenBalance, 0, len(result.Meta.PostTokenBalances))
	for _, b := range result.Meta.PostTokenBalances {
		post = append(post, toTokenBalance(b))
	}

	var blockTime int64
	if result.BlockTime != nil {
		blockTime = int64(*result.BlockTime)
	}

	return &ParsedTransaction{
		Signature:         signature,
		Slot:              result.Slot,
		BlockTimeUnixSec:  blockTime,
		Failed:            result.Meta.Err != nil,
		Fee:               result.Meta.Fee,
		AccountKeys:       accountKeys,
		SignerFlags:       signerFlags,
		PreBalances:       result.Meta.PreBalances,
		PostBalances:      result.Meta.PostBalances,
		PreTokenBalances:  pre,
		PostTokenBalances: post,
	}, nil
}

func toTokenBalance(b rpc.TokenBalance) TokenBalance {
	tb := TokenBalance{
		AccountIndex: b.AccountIndex,
		Mint:         b.Mint.String(),
	}
	if b.Owner != nil {
		tb.Owner = b.Owner.String()
	}
	if b.UiTokenAmount != nil {
		if b.UiTokenAmount.UiAmount != nil {
			tb.UiAmount = *b.UiTokenAmount.UiAmount
		}
		tb.Decimals = b.UiTokenAmount.Decimals
	}
	return tb
}

// AccountInfo is the subset of account data MintVerifier needs.
type AccountInfo struct {
	Owner    string
	DataLen  int
	Exists   bool
}

// GetAccountInfo fetches owner and raw data length for addr.
func (c *Client) GetAccountInfo(ctx context.Context, addr string) (*AccountInfo, error) {
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid pubkey %q: %w", addr, err)
	}

	result, err := c.RPC.GetAccountInfo(ctx, pk)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Value == nil {
		return &AccountInfo{Exists: false}, nil
	}

	return &AccountInfo{
		Owner:   result.Value.Owner.String(),
		DataLen: len(result.Value.Data.GetBinary()),
		Exists:  true,
	}, nil
}

// LogNotification is one message from a venue logs subscription, matching
// spec.md §6's "(signature, err, logs, slot)" upstream contract.
type LogNotification struct {
	Signature string
	Failed    bool
	Logs      []string
	Slot      uint64
}

// maxReconnectAttempts and baseReconnectDelay implement spec.md §4.7's
// reconnect policy: exponential backoff up to a fixed cap, then fatal.
const (
	maxReconnectAttempts = 10
	baseReconnectDelay   = 1 * time.Second
)

// SubscribeLogs subscribes to program logs for the given venue program IDs
// and streams notifications on the returned channel until ctx is
// cancelled or reconnection is exhausted, in which case the channel is
// closed and a fatal error is sent on errc.
func (c *Client) SubscribeLogs(ctx context.Context, programIDs []string) (<-chan LogNotification, <-chan error) {
	out := make(chan LogNotification, 256)
	errc := make(chan error, 1)

	go c.runSubscription(ctx, programIDs, out, errc)

	return out, errc
}

func (c *Client) runSubscription(ctx context.Context, programIDs []string, out chan<- LogNotification, errc chan<- error) {
	defer close(out)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.subscribeOnce(ctx, programIDs, out)
		if err == nil {
			return // ctx cancelled cleanly inside subscribeOnce
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		if attempt > maxReconnectAttempts {
			errc <- fmt.Errorf("chain: logs subscription reconnect exhausted after %d attempts: %w", maxReconnectAttempts, err)
			return
		}

		delay := baseReconnectDelay * time.Duration(1<<uint(attempt-1))
		log.Printf("[Chain] logs subscription dropped (%v); reconnect attempt %d/%d in %s", err, attempt, maxReconnectAttempts, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) subscribeOnce(ctx context.Context, programIDs []string, out chan<- LogNotification) error {
	wsClient, err := ws.Connect(ctx, c.cfg.WSEndpoint)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	defer wsClient.Close()

	subs := make([]*ws.LogSubscription, 0, len(programIDs))
	for _, pid := range programIDs {
		pk, err := solana.PublicKeyFromBase58(pid)
		if err != nil {
			return fmt.Errorf("invalid program id %q: %w", pid, err)
		}
		sub, err := wsClient.LogsSubscribeMentions(pk, rpc.CommitmentConfirmed)
		if err != nil {
			return fmt.Errorf("logs subscribe %q: %w", pid, err)
		}
		defer sub.Unsubscribe()
		subs = append(subs, sub)
	}

	// Reset reconnect backoff on a clean connection by returning nil only
	// when ctx is cancelled; any other exit is a transport failure.
	type recvResult struct {
		notif LogNotification
		err   error
	}
	results := make(chan recvResult, 64)

	for _, sub := range subs {
		go func(s *ws.LogSubscription) {
			for {
				got, err := s.Recv(ctx)
				if err != nil {
					results <- recvResult{err: err}
					return
				}
				results <- recvResult{notif: LogNotification{
					Signature: got.Value.Signature.String(),
					Failed:    got.Value.Err != nil,
					Logs:      got.Value.Logs,
					Slot:      got.Context.Slot,
				}}
			}
		}(sub)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			out <- r.notif
		}
	}
}
