package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is returned when a market snapshot fails validation.
// Callers skip the candidate and continue the cycle.
var ErrInvalidSnapshot = errors.New("invalid market snapshot")

// MarketSnapshot is an immutable point-in-time view of a token's market state.
// Produced by the market-data provider; input only, never mutated.
type MarketSnapshot struct {
	TokenAddress string // token mint address (base58)
	Symbol       string
	Name         string

	PriceUSD     float64
	Volume24hUSD float64
	LiquidityUSD float64

	PriceChange5mPct  float64 // percent, e.g. 5.0 = +5%
	PriceChange1hPct  float64
	PriceChange24hPct float64

	BuyCount5m  int
	SellCount5m int

	PairAddress string
	FDVUSD      float64

	ObservedAt int64 // Unix timestamp in milliseconds
}

// BuyRatio returns the fraction of buys among recent transactions (0..1).
// Returns 0 when the window has no transactions.
func (s *MarketSnapshot) BuyRatio() float64 {
	total := s.BuyCount5m + s.SellCount5m
	if total == 0 {
		return 0
	}
	return float64(s.BuyCount5m) / float64(total)
}

// Validate checks the snapshot for fields the engine cannot score without.
func (s *MarketSnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := ValidateTokenAddress(s.TokenAddress); err != nil {
		return fmt.Errorf("%w: token address: %v", ErrInvalidSnapshot, err)
	}
	if s.PriceUSD <= 0 {
		return fmt.Errorf("%w: non-positive price %v", ErrInvalidSnapshot, s.PriceUSD)
	}
	if s.LiquidityUSD < 0 || s.Volume24hUSD < 0 {
		return fmt.Errorf("%w: negative liquidity/volume", ErrInvalidSnapshot)
	}
	if s.BuyCount5m < 0 || s.SellCount5m < 0 {
		return fmt.Errorf("%w: negative transaction counts", ErrInvalidSnapshot)
	}
	if s.ObservedAt <= 0 {
		return fmt.Errorf("%w: missing observation timestamp", ErrInvalidSnapshot)
	}
	return nil
}
