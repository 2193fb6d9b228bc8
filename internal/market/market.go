// Package market defines the engine's collaborator interfaces for market
// data, quoting, execution and wallet holdings, plus HTTP/WebSocket clients
// for the real services. The engine depends only on the interfaces; tests
// use the stub package.
package market

import (
	"context"
	"errors"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/observability"
)

// LamportsPerSOL is the smallest-unit denomination of SOL.
const LamportsPerSOL = 1_000_000_000

// WrappedSOLMint is the canonical wrapped-SOL mint, the input side of every
// buy quote.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// ErrNoMarketData is returned when a provider has no pairs for a token.
var ErrNoMarketData = errors.New("no market data for token")

// TrendSource discovers candidate tokens and snapshots their market state.
type TrendSource interface {
	// Trending returns snapshots for currently trending tokens.
	Trending(ctx context.Context) ([]*domain.MarketSnapshot, error)

	// Snapshots returns current snapshots for specific tokens. Tokens with
	// no market data are omitted from the result.
	Snapshots(ctx context.Context, tokenAddresses []string) ([]*domain.MarketSnapshot, error)
}

// PriceSource resolves current USD prices for tokens. The exit job uses it
// when no price stream is configured.
type PriceSource interface {
	// Prices returns current prices keyed by token address. Tokens with no
	// market data are absent from the map.
	Prices(ctx context.Context, tokenAddresses []string) (map[string]float64, error)
}

// QuoteRequest asks for a swap quote.
type QuoteRequest struct {
	InputMint      string
	OutputMint     string
	AmountLamports int64
	SlippageBps    int
}

// Quote is a priced swap route.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       int64
	OutAmount      int64
	PriceImpactPct float64
	SlippageBps    int
	RouteCount     int

	// Raw is the provider response, passed through on execution.
	Raw []byte
}

// SwapResult is the outcome of an executed (or simulated) swap.
type SwapResult struct {
	Signature string
	Simulated bool
}

// Quoter prices swaps.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// Executor turns quotes into swaps. Implementations must honor dry-run by
// returning a simulated result without touching the network.
type Executor interface {
	ExecuteSwap(ctx context.Context, quote *Quote, walletPubkey string) (*SwapResult, error)
}

// Holding is one fungible token balance in a wallet.
type Holding struct {
	Mint     string
	Symbol   string
	Amount   float64
	ValueUSD float64
}

// HoldingsProvider reads wallet state. Display only; positions stay the
// engine's source of truth.
type HoldingsProvider interface {
	SOLBalance(ctx context.Context, walletPubkey string) (float64, error)
	Holdings(ctx context.Context, walletPubkey string) ([]Holding, error)
}

// observeCall records latency and, on failure, the error counter for one
// provider call.
func observeCall(provider, call string, start time.Time, err error) {
	observability.RecordExternalCall(provider, call, time.Since(start).Seconds())
	if err != nil {
		observability.RecordExternalError(provider, call)
	}
}
